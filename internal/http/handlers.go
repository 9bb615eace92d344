package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/reconciler"
	"bullseye-tracker/internal/store"

	"github.com/charmbracelet/log"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// MatchesHandler serves the durable match log: GET lists it, DELETE removes a
// single entry by id.
func (s *Server) MatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "Missing 'id' parameter", http.StatusBadRequest)
				return
			}
			if err := s.Gate.DeleteMatch(r.Context(), id); err != nil {
				log.Error("Failed to delete match", "matchID", id, "error", err)
				http.Error(w, "Failed to delete match", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "Deleted match %s", id)

		default:
			matches, err := s.Gate.ListMatches(r.Context())
			if err != nil {
				http.Error(w, "Failed to get matches", http.StatusInternalServerError)
				log.Error("Failed to get matches from store", "error", err)
				return
			}
			if matches == nil {
				matches = []bullseye.MatchRecord{}
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(matches); err != nil {
				log.Error("Failed to encode matches to JSON", "error", err)
			}
		}
	}
}

// LiveHandler serves the snapshot of the match currently being assembled.
func (s *Server) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := s.Store.Get(r.Context(), store.KeyLiveGame)
		if err != nil {
			http.Error(w, "Failed to get live match", http.StatusInternalServerError)
			log.Error("Failed to get live snapshot from store", "error", err)
			return
		}
		raw, ok := values[store.KeyLiveGame]
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(raw); err != nil {
			log.Error("Failed to write live match response", "error", err)
		}
	}
}

// SaveHandler finalizes the live match on user request.
func (s *Server) SaveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.manualSave()
		if errors.Is(err, reconciler.ErrNoMatchData) {
			http.Error(w, "No game data available to save", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("Manual save failed", "error", err)
			http.Error(w, "Failed to save match", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Match saved!")
	}
}

func (s *Server) ClearStoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.URL.Query().Get("matchID")
		if matchID != "" {
			log.Info("Received request to clear a specific match", "matchID", matchID)
			if err := s.Gate.DeleteMatch(r.Context(), matchID); err != nil {
				log.Error("Failed to clear match", "matchID", matchID, "error", err)
				http.Error(w, "Failed to clear match", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "Cleared match %s from store!", matchID)
			log.Info("Successfully cleared match from store", "matchID", matchID)
		} else {
			log.Info("Received request to clear entire store")
			if err := s.Gate.ClearAll(r.Context()); err != nil {
				log.Error("Failed to clear store", "error", err)
				http.Error(w, "Failed to clear store", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "Store cleared!")
			log.Info("Store cleared successfully")
		}
	}
}
