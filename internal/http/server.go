package http

import (
	"net/http"

	"bullseye-tracker/internal/config"
	"bullseye-tracker/internal/metrics"
	"bullseye-tracker/internal/persist"
	"bullseye-tracker/internal/profiles"
	"bullseye-tracker/internal/store"
)

func NewServer(gate persist.Gate, kv store.KVStore, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config, profileClient profiles.ProfileClient) *Server {
	server := &Server{
		Gate:           gate,
		Store:          kv,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Profiles:       profileClient,
		Router:         http.NewServeMux(),
		sessions:       make(map[string]*session),
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// This makes it easy to add more middlewares in the future, like an authentication middleware.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("/ingest", s.IngestHandler())
	s.Router.Handle("/matches", Chain(s.MatchesHandler(), paramsMiddleware))
	s.Router.Handle("/live", Chain(s.LiveHandler(), paramsMiddleware))
	s.Router.Handle("/save", Chain(s.SaveHandler(), paramsMiddleware))
	s.Router.Handle("/clear", Chain(s.ClearStoreHandler(), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
