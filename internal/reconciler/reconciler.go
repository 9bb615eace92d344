package reconciler

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/metrics"
	"bullseye-tracker/internal/pageobs"
	"bullseye-tracker/internal/persist"
	"bullseye-tracker/internal/profiles"
	"bullseye-tracker/internal/pubsub"
	"bullseye-tracker/internal/store"

	"github.com/charmbracelet/log"
)

// DefaultInitTimeout bounds how long a detected match context may wait for
// its first authoritative payload before the lifecycle reverts to idle.
const DefaultInitTimeout = 90 * time.Second

// Reconciler merges partial observations from the request interceptor and the
// page observer into one match record and drives that record's lifecycle from
// idle to saved. Bus handlers all run on the dispatcher goroutine; the mutex
// covers the HTTP-facing reads and the detached nickname lookups.
type Reconciler struct {
	bus      pubsub.PubSubClient
	gate     persist.Gate
	store    store.KVStore
	profiles profiles.ProfileClient
	metrics  metrics.Metrics
	page     PageReader

	// InitTimeout and Now can be overridden in tests.
	InitTimeout time.Duration
	Now         func() time.Time

	mu          sync.Mutex
	state       bullseye.MatchState
	current     *bullseye.MatchRecord
	domScore    int
	initSeq     int
	initTimer   *time.Timer
	lobbyNicks  map[string]string
	pendingNick map[string]bool
}

// New creates a reconciler. Call Wire to attach it to the bus.
func New(bus pubsub.PubSubClient, gate persist.Gate, kv store.KVStore, profileClient profiles.ProfileClient, metricsSvc metrics.Metrics, page PageReader) *Reconciler {
	return &Reconciler{
		bus:         bus,
		gate:        gate,
		store:       kv,
		profiles:    profileClient,
		metrics:     metricsSvc,
		page:        page,
		InitTimeout: DefaultInitTimeout,
		Now:         time.Now,
		state:       bullseye.StateIdle,
		lobbyNicks:  make(map[string]string),
		pendingNick: make(map[string]bool),
	}
}

// Wire subscribes the reconciler to every event type it consumes.
func (r *Reconciler) Wire() {
	r.bus.Subscribe(pubsub.TypeLobbyData, r.handleLobby)
	r.bus.Subscribe(pubsub.TypeMatchData, r.handleMatchData)
	r.bus.Subscribe(pubsub.TypeGuessData, r.handleGuessData)
	r.bus.Subscribe(pubsub.TypeWSEvent, r.handleWSEvent)
	r.bus.Subscribe(pubsub.TypeNavigation, r.handleNavigation)
	r.bus.Subscribe(pubsub.TypePageSignal, r.handlePageSignal)
	r.bus.Subscribe(pubsub.TypeNickResolved, r.handleNickResolved)
	r.bus.Subscribe(pubsub.TypeTimer, r.handleTimer)
}

// State returns the current lifecycle state.
func (r *Reconciler) State() bullseye.MatchState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CurrentRecord returns a copy of the match record being assembled, or nil
// when no match is held.
func (r *Reconciler) CurrentRecord() *bullseye.MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	out := *r.current
	out.Rounds = append([]bullseye.Round(nil), r.current.Rounds...)
	out.Players = append([]bullseye.PlayerRef(nil), r.current.Players...)
	return &out
}

// ManualSave finalizes the held match on user request. It returns
// ErrNoMatchData when there is nothing worth saving.
func (r *Reconciler) ManualSave() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != bullseye.StateLive || r.current == nil {
		return ErrNoMatchData
	}
	log.Info("Manual save requested", "matchID", r.current.ID)
	return r.finalizeLocked(false)
}

func (r *Reconciler) handleLobby(msg pubsub.Message) {
	var payload bullseye.LobbyPayload
	if err := r.bus.ProcessMessage(msg.Data, &payload); err != nil {
		log.Error("Failed to decode lobby payload", "error", err)
		return
	}
	r.onLobby(payload)
}

func (r *Reconciler) handleMatchData(msg pubsub.Message) {
	var state bullseye.GameState
	if err := r.bus.ProcessMessage(msg.Data, &state); err != nil {
		log.Error("Failed to decode game state", "error", err)
		return
	}
	r.onGameState(state)
}

func (r *Reconciler) handleGuessData(msg pubsub.Message) {
	var state bullseye.GameState
	if err := r.bus.ProcessMessage(msg.Data, &state); err != nil {
		log.Error("Failed to decode guess response", "error", err)
		return
	}
	r.onGuess(state)
}

func (r *Reconciler) handleWSEvent(msg pubsub.Message) {
	var frame bullseye.WSMessage
	if err := r.bus.ProcessMessage(msg.Data, &frame); err != nil {
		log.Error("Failed to decode frame event", "error", err)
		return
	}
	r.onWSEvent(frame)
}

func (r *Reconciler) handleNavigation(msg pubsub.Message) {
	var ev NavigationEvent
	if err := r.bus.ProcessMessage(msg.Data, &ev); err != nil {
		log.Error("Failed to decode navigation event", "error", err)
		return
	}
	r.onNavigation(ev)
}

func (r *Reconciler) handlePageSignal(msg pubsub.Message) {
	var sig pageobs.Signal
	if err := r.bus.ProcessMessage(msg.Data, &sig); err != nil {
		log.Error("Failed to decode page signal", "error", err)
		return
	}
	r.onPageSignal(sig)
}

func (r *Reconciler) handleNickResolved(msg pubsub.Message) {
	var ev NickResolvedEvent
	if err := r.bus.ProcessMessage(msg.Data, &ev); err != nil {
		log.Error("Failed to decode nickname result", "error", err)
		return
	}
	r.onNickResolved(ev)
}

func (r *Reconciler) handleTimer(msg pubsub.Message) {
	var ev TimerEvent
	if err := r.bus.ProcessMessage(msg.Data, &ev); err != nil {
		log.Error("Failed to decode timer event", "error", err)
		return
	}
	r.onTimer(ev)
}

func (r *Reconciler) onLobby(payload bullseye.LobbyPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cacheLobbyNicksLocked(payload.Players)

	switch r.state {
	case bullseye.StateIdle:
		// Lobby fetches happen on the party screen long before a match
		// starts. Remember the nicknames but do not open a match.
		log.Debug("Cached lobby roster", "lobbyID", payload.GameLobbyID, "players", len(payload.Players))
		return
	case bullseye.StateSaved, bullseye.StateFinalizing:
		return
	}

	start := time.Now()
	r.applyLobbyLocked(payload)
	r.metrics.ObserveMergeDuration(time.Since(start).Seconds())
	r.writeSnapshotLocked()
}

func (r *Reconciler) onGameState(state bullseye.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guardSavedLocked(state.GameID) {
		return
	}
	if r.current == nil {
		// Authoritative state can open a match even when navigation was
		// never observed.
		r.current = &bullseye.MatchRecord{}
	}
	r.mergeLocked(state)
	r.writeSnapshotLocked()
}

func (r *Reconciler) onGuess(state bullseye.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != bullseye.StateLive {
		log.Debug("Dropping guess response with no live match")
		return
	}
	r.mergeLocked(state)
	r.writeSnapshotLocked()
}

func (r *Reconciler) onWSEvent(frame bullseye.WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch frame.Code {
	case bullseye.CodeGameAborted:
		switch r.state {
		case bullseye.StateLive:
			log.Info("Game aborted", "matchID", r.current.ID)
			r.finalizeLocked(true)
		case bullseye.StateInitializing:
			log.Info("Game aborted before any authoritative data, discarding")
			r.resetLocked()
		default:
			log.Debug("Dropping abort with no match held")
		}
	case bullseye.CodeRoundStarted, bullseye.CodeGuess, bullseye.CodeRoundEnded:
		state := frame.State()
		if state == nil {
			log.Debug("Frame carries no game state", "code", frame.Code)
			return
		}
		if r.guardSavedLocked(state.GameID) {
			return
		}
		if r.current == nil {
			r.current = &bullseye.MatchRecord{}
		}
		r.mergeLocked(*state)
		r.writeSnapshotLocked()
		if frame.Code == bullseye.CodeRoundEnded && state.Status == bullseye.GameStatusFinished {
			r.finalizeLocked(false)
		}
	default:
		log.Debug("Dropping unhandled frame code", "code", frame.Code)
	}
}

func (r *Reconciler) onNavigation(ev NavigationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inMatchContext(ev.URL) {
		switch r.state {
		case bullseye.StateIdle:
			r.enterInitializingLocked(ev.URL)
		case bullseye.StateSaved:
			if r.current == nil || ev.URL != r.current.URL {
				r.resetLocked()
				r.enterInitializingLocked(ev.URL)
			}
		case bullseye.StateLive:
			if r.current.URL != "" && ev.URL != r.current.URL {
				// Jumped straight into a different match.
				r.finalizeLocked(true)
				r.resetLocked()
				r.enterInitializingLocked(ev.URL)
			} else if r.current.URL == "" {
				r.current.URL = ev.URL
			}
		}
		return
	}

	switch r.state {
	case bullseye.StateLive:
		log.Info("Left match context with a live match, treating as abandonment", "matchID", r.current.ID)
		if r.finalizeLocked(true) == nil {
			r.resetLocked()
		}
	case bullseye.StateInitializing:
		log.Info("Left match context before any authoritative data, discarding")
		r.resetLocked()
	case bullseye.StateSaved:
		r.resetLocked()
	}
}

func (r *Reconciler) onPageSignal(sig pageobs.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch sig.Kind {
	case pageobs.SignalLiveScore:
		if r.state != bullseye.StateLive {
			return
		}
		// The page score is only trusted upward; the round sum wins
		// whenever it catches up.
		if sig.Score > r.current.Score {
			r.domScore = sig.Score
			r.current.Score = sig.Score
			r.writeSnapshotLocked()
		}
	case pageobs.SignalTerminal:
		if r.state != bullseye.StateLive {
			log.Debug("Dropping terminal signal with no live match")
			return
		}
		r.finalizeLocked(false)
	}
}

func (r *Reconciler) onNickResolved(ev NickResolvedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || r.current.ID != ev.GameID {
		return
	}
	if r.state == bullseye.StateSaved || r.state == bullseye.StateFinalizing {
		return
	}
	for i := range r.current.Players {
		p := &r.current.Players[i]
		if p.PlayerID == ev.PlayerID && !p.HasNick() {
			p.Nick = ev.Nick
		}
	}
	r.writeSnapshotLocked()
}

func (r *Reconciler) onTimer(ev TimerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != bullseye.StateInitializing || ev.Seq != r.initSeq {
		return
	}
	log.Warn("No authoritative data arrived within the init window, reverting to idle")
	r.resetLocked()
}

// guardSavedLocked reports whether a state payload must be dropped. A payload
// for a different match than the one just saved resets the lifecycle first
// and is then allowed through.
func (r *Reconciler) guardSavedLocked(gameID string) bool {
	switch r.state {
	case bullseye.StateFinalizing:
		return true
	case bullseye.StateSaved:
		if gameID != "" && (r.current == nil || gameID != r.current.ID) {
			r.resetLocked()
			return false
		}
		log.Debug("Dropping state for an already saved match", "matchID", gameID)
		return true
	}
	return false
}

func (r *Reconciler) enterInitializingLocked(url string) {
	r.state = bullseye.StateInitializing
	r.current = &bullseye.MatchRecord{URL: url}
	r.domScore = 0
	r.pendingNick = make(map[string]bool)
	if r.page != nil {
		r.page.Reset()
	}
	r.armInitTimerLocked()
	log.Info("Entered match context, waiting for data", "url", url)
}

func (r *Reconciler) armInitTimerLocked() {
	r.initSeq++
	seq := r.initSeq
	if r.initTimer != nil {
		r.initTimer.Stop()
	}
	r.initTimer = time.AfterFunc(r.InitTimeout, func() {
		if err := r.bus.Publish(pubsub.TypeTimer, TimerEvent{Seq: seq}); err != nil {
			log.Error("Failed to publish init timeout", "error", err)
		}
	})
}

func (r *Reconciler) stopInitTimerLocked() {
	r.initSeq++
	if r.initTimer != nil {
		r.initTimer.Stop()
		r.initTimer = nil
	}
}

func (r *Reconciler) toLiveLocked() {
	r.stopInitTimerLocked()
	r.state = bullseye.StateLive
	log.Info("Match is live", "matchID", r.current.ID)
}

func (r *Reconciler) resetLocked() {
	r.stopInitTimerLocked()
	r.state = bullseye.StateIdle
	r.current = nil
	r.domScore = 0
	r.pendingNick = make(map[string]bool)
	if r.page != nil {
		r.page.Reset()
	}
}

// finalizeLocked is the single exit path for a held match, whatever the
// terminal signal was. The first caller wins; later terminal signals hit the
// state guard and drop.
func (r *Reconciler) finalizeLocked(gaveUp bool) error {
	if r.current == nil || r.state == bullseye.StateSaved || r.state == bullseye.StateFinalizing {
		log.Debug("Ignoring duplicate finalize")
		return nil
	}
	r.stopInitTimerLocked()
	r.state = bullseye.StateFinalizing

	record := r.current
	if !gaveUp && r.page != nil {
		if final, ok := r.page.ReadFinalScore(); ok && final != record.Score {
			log.Info("Correcting score from end screen", "computed", record.Score, "final", final)
			record.Score = final
		}
	}
	now := r.Now()
	record.GaveUp = gaveUp
	record.Date = now
	if d, ok := matchDuration(record.Rounds, now); ok {
		record.TotalDuration = d
	}
	if record.ID == "" {
		record.ID = bullseye.FallbackID(now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.gate.SaveMatch(ctx, *record); err != nil {
		// Keep the match live so a later terminal signal can retry.
		log.Error("Failed to persist match", "matchID", record.ID, "error", err)
		r.state = bullseye.StateLive
		return err
	}
	r.state = bullseye.StateSaved
	return nil
}

func (r *Reconciler) writeSnapshotLocked() {
	if r.current == nil || r.state == bullseye.StateSaved {
		return
	}
	raw, err := json.Marshal(r.current)
	if err != nil {
		log.Error("Failed to marshal live snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Set(ctx, map[string]json.RawMessage{store.KeyLiveGame: raw}); err != nil {
		log.Error("Failed to write live snapshot", "error", err)
	}
}

func inMatchContext(url string) bool {
	return strings.Contains(url, "/bullseye/")
}
