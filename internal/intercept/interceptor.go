package intercept

import (
	"encoding/json"
	"sync"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/metrics"
	"bullseye-tracker/internal/pubsub"

	"github.com/charmbracelet/log"
)

// RequestRecord describes one completed page-initiated HTTP request. Only
// the URL and a well-formed JSON body matter; transport success or failure
// does not.
type RequestRecord struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// RequestHook observes one completed request.
type RequestHook func(rec RequestRecord)

// FrameHook observes one received WebSocket text frame.
type FrameHook func(data []byte)

// Interceptor is a pure classify-and-forward stage: it inspects intercepted
// traffic, republishes recognized payloads on the internal bus, and keeps no
// state. A hook registry replaces the original's monkey-patched transport
// objects; hooks must never disturb delivery of the traffic they observe, so
// every hook failure is contained here.
type Interceptor struct {
	mu           sync.Mutex
	requestHooks []RequestHook
	frameHooks   []FrameHook
}

// New creates an Interceptor with the classification hooks registered.
func New(bus pubsub.PubSubClient, metricsSvc metrics.Metrics) *Interceptor {
	i := &Interceptor{}
	i.OnRequest(classifyRequestHook(bus, metricsSvc))
	i.OnFrame(classifyFrameHook(bus, metricsSvc))
	return i
}

// OnRequest registers a hook invoked for every completed request.
func (i *Interceptor) OnRequest(h RequestHook) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.requestHooks = append(i.requestHooks, h)
}

// OnFrame registers a hook invoked for every received text frame.
func (i *Interceptor) OnFrame(h FrameHook) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.frameHooks = append(i.frameHooks, h)
}

// Observe runs all request hooks against a completed request. It never
// returns an error: the host page's handling of the response must proceed
// unchanged regardless of what happens in here.
func (i *Interceptor) Observe(rec RequestRecord) {
	i.mu.Lock()
	hooks := make([]RequestHook, len(i.requestHooks))
	copy(hooks, i.requestHooks)
	i.mu.Unlock()

	for _, h := range hooks {
		runContained(func() { h(rec) })
	}
}

// ObserveFrame runs all frame hooks against a received text frame.
func (i *Interceptor) ObserveFrame(data []byte) {
	i.mu.Lock()
	hooks := make([]FrameHook, len(i.frameHooks))
	copy(hooks, i.frameHooks)
	i.mu.Unlock()

	for _, h := range hooks {
		runContained(func() { h(data) })
	}
}

func runContained(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Interceptor hook panicked", "panic", r)
		}
	}()
	f()
}

func classifyRequestHook(bus pubsub.PubSubClient, metricsSvc metrics.Metrics) RequestHook {
	return func(rec RequestRecord) {
		kind := Classify(rec.URL)
		if kind == KindNone {
			return
		}

		switch kind {
		case KindLobby:
			var payload bullseye.LobbyPayload
			if err := json.Unmarshal(rec.Body, &payload); err != nil {
				log.Debug("Ignoring malformed lobby payload", "url", rec.URL, "error", err)
				return
			}
			log.Debug("Lobby data intercepted", "url", rec.URL, "lobbyID", payload.GameLobbyID)
			metricsSvc.IncEventsClassified(kind.String())
			bus.Publish(pubsub.TypeLobbyData, payload)

		case KindMatchDetail:
			var state bullseye.GameState
			if err := json.Unmarshal(rec.Body, &state); err != nil {
				log.Debug("Ignoring malformed game state payload", "url", rec.URL, "error", err)
				return
			}
			log.Debug("Game API data intercepted", "url", rec.URL, "gameID", state.GameID)
			metricsSvc.IncEventsClassified(kind.String())
			bus.Publish(pubsub.TypeMatchData, state)

		case KindGuess:
			var state bullseye.GameState
			if err := json.Unmarshal(rec.Body, &state); err != nil {
				log.Debug("Ignoring malformed guess response", "url", rec.URL, "error", err)
				return
			}
			log.Debug("Guess response intercepted", "url", rec.URL, "gameID", state.GameID)
			metricsSvc.IncEventsClassified(kind.String())
			bus.Publish(pubsub.TypeGuessData, state)
		}
	}
}

func classifyFrameHook(bus pubsub.PubSubClient, metricsSvc metrics.Metrics) FrameHook {
	return func(data []byte) {
		if len(data) == 0 || data[0] != '{' {
			return
		}
		var msg bullseye.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Non-JSON frames are normal traffic, not an error.
			return
		}

		switch msg.Code {
		case bullseye.CodeRoundStarted, bullseye.CodeGuess, bullseye.CodeRoundEnded, bullseye.CodeGameAborted:
			log.Debug("WebSocket event intercepted", "code", msg.Code)
			metricsSvc.IncEventsClassified(string(msg.Code))
			bus.Publish(pubsub.TypeWSEvent, msg)
		default:
			metricsSvc.IncFramesIgnored()
		}
	}
}
