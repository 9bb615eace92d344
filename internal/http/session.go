package http

import (
	"bullseye-tracker/internal/intercept"
	"bullseye-tracker/internal/pageobs"
	"bullseye-tracker/internal/pubsub"
	"bullseye-tracker/internal/reconciler"

	"github.com/google/uuid"
)

// session is the per-connection pipeline behind one shim connection. One
// connection means one page context, so each session gets its own bus and the
// single-dispatcher ordering of that bus is what serializes the event
// timeline end to end.
type session struct {
	id          string
	bus         pubsub.PubSubClient
	interceptor *intercept.Interceptor
	observer    *pageobs.Observer
	reconciler  *reconciler.Reconciler
}

func (s *Server) newSession() *session {
	bus := pubsub.New()
	observer := pageobs.New(bus, pageobs.DefaultMarkers())
	rec := reconciler.New(bus, s.Gate, s.Store, s.Profiles, s.Metrics, observer)
	rec.Wire()

	sess := &session{
		id:          uuid.NewString(),
		bus:         bus,
		interceptor: intercept.New(bus, s.Metrics),
		observer:    observer,
		reconciler:  rec,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	sess.bus.Close()
}

// manualSave asks each connected session to finalize its live match. At most
// one session holds a live match at a time in practice.
func (s *Server) manualSave() error {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	err := reconciler.ErrNoMatchData
	for _, sess := range sessions {
		saveErr := sess.reconciler.ManualSave()
		if saveErr == nil {
			return nil
		}
		if saveErr != reconciler.ErrNoMatchData {
			err = saveErr
		}
	}
	return err
}
