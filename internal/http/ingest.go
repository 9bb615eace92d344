package http

import (
	"encoding/json"
	"net/http"

	"bullseye-tracker/internal/intercept"
	"bullseye-tracker/internal/pageobs"
	"bullseye-tracker/internal/pubsub"
	"bullseye-tracker/internal/reconciler"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// The shim connects from a browser extension origin.
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Envelope is one observation from the browser shim.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const (
	kindHTTPResponse = "http-response"
	kindWSFrame      = "ws-frame"
	kindDOMAdded     = "dom-added"
	kindDOMText      = "dom-text"
	kindDOMClick     = "dom-click"
	kindNavigation   = "navigation"
)

type httpResponsePayload struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

type wsFramePayload struct {
	Data string `json:"data"`
}

type domAddedPayload struct {
	Nodes []pageobs.Node `json:"nodes"`
}

type navigationPayload struct {
	URL string `json:"url"`
}

// IngestHandler accepts the shim's WebSocket connection and feeds its
// observations into a dedicated session pipeline. The read loop is the only
// producer for the session's bus, which keeps the page's event order intact.
func (s *Server) IngestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Failed to upgrade ingest connection", "error", err)
			return
		}

		sess := s.newSession()
		log.Info("Shim connected", "session", sess.id, "remote", r.RemoteAddr)
		defer func() {
			conn.Close()
			s.dropSession(sess)
			log.Info("Shim disconnected", "session", sess.id)
		}()

		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn("Ingest connection lost", "session", sess.id, "error", err)
				}
				return
			}
			sess.dispatch(env)
		}
	}
}

func (sess *session) dispatch(env Envelope) {
	switch env.Kind {
	case kindHTTPResponse:
		var p httpResponsePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug("Malformed http-response envelope", "session", sess.id, "error", err)
			return
		}
		sess.interceptor.Observe(intercept.RequestRecord{
			Method: p.Method,
			URL:    p.URL,
			Status: p.Status,
			Body:   []byte(p.Body),
		})

	case kindWSFrame:
		var p wsFramePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug("Malformed ws-frame envelope", "session", sess.id, "error", err)
			return
		}
		sess.interceptor.ObserveFrame([]byte(p.Data))

	case kindDOMAdded:
		var p domAddedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug("Malformed dom-added envelope", "session", sess.id, "error", err)
			return
		}
		sess.observer.ApplyInsertion(p.Nodes)

	case kindDOMText:
		var node pageobs.Node
		if err := json.Unmarshal(env.Data, &node); err != nil {
			log.Debug("Malformed dom-text envelope", "session", sess.id, "error", err)
			return
		}
		sess.observer.ApplyText(node)

	case kindDOMClick:
		var node pageobs.Node
		if err := json.Unmarshal(env.Data, &node); err != nil {
			log.Debug("Malformed dom-click envelope", "session", sess.id, "error", err)
			return
		}
		sess.observer.ApplyClick(node)

	case kindNavigation:
		var p navigationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Debug("Malformed navigation envelope", "session", sess.id, "error", err)
			return
		}
		if err := sess.bus.Publish(pubsub.TypeNavigation, reconciler.NavigationEvent{URL: p.URL}); err != nil {
			log.Error("Failed to publish navigation event", "session", sess.id, "error", err)
		}

	default:
		log.Debug("Unknown ingest envelope kind", "session", sess.id, "kind", env.Kind)
	}
}
