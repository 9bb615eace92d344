package reconciler

import "errors"

// PageReader is the capability the reconciler needs from the page observer:
// the final-score correction read and the per-match state reset. Keeping it
// this narrow means the selector rules can change without touching the
// reconciliation logic.
type PageReader interface {
	ReadFinalScore() (int, bool)
	Reset()
}

// NavigationEvent reports a location change in the observed page.
type NavigationEvent struct {
	URL string
}

// TimerEvent is posted by the initialization timeout so that the revert to
// idle happens on the dispatcher timeline like every other transition.
type TimerEvent struct {
	Seq int
}

// NickResolvedEvent carries the result of an asynchronous nickname lookup
// back onto the dispatcher timeline.
type NickResolvedEvent struct {
	GameID   string
	PlayerID string
	Nick     string
}

// ErrNoMatchData is returned by ManualSave when no live match is held.
var ErrNoMatchData = errors.New("no game data available to save")
