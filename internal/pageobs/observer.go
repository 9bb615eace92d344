package pageobs

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"bullseye-tracker/internal/pubsub"

	"github.com/charmbracelet/log"
)

// SignalKind distinguishes the page-derived signals on the bus.
type SignalKind string

const (
	SignalTerminal  SignalKind = "terminal"
	SignalLiveScore SignalKind = "live-score"
)

// Signal is the payload published under pubsub.TypePageSignal.
type Signal struct {
	Kind  SignalKind
	Score int
}

// Node is the shim's description of an inserted or mutated element: its
// class names and text content. The shim flattens descendants, so a batch
// contains one Node per element worth testing.
type Node struct {
	Classes []string `json:"classes"`
	Text    string   `json:"text,omitempty"`
}

// Markers holds the page-specific selector prefixes. Page markup is an
// unstable external schema; the hashed class suffixes change between
// deployments, so matching is prefix-based and the values live in config.
type Markers struct {
	EndScreen     string
	FinalScore    string
	RoundScore    string
	ScoreDisplay  string
	FinishControl string
	FinishLabel   string
}

// DefaultMarkers returns the marker set for the current page markup.
func DefaultMarkers() Markers {
	return Markers{
		EndScreen:     "game-finished_container",
		FinalScore:    "game-finished_points",
		RoundScore:    "round-score_points",
		ScoreDisplay:  "round-score_points",
		FinishControl: "button_variantPrimary",
		FinishLabel:   "Finish game",
	}
}

// Observer turns page mutation descriptors into bus signals. It owns the
// small amount of per-match page state: whether the terminal signal fired,
// whether the finish control is armed, and the last score text seen.
type Observer struct {
	bus     pubsub.PubSubClient
	markers Markers

	// ClickDelay is the wait after a finish-control click before the
	// terminal signal fires, giving the page time to render its final score.
	ClickDelay time.Duration

	mu            sync.Mutex
	terminalSent  bool
	finishArmed   bool
	finishClicked bool
	clickTimer    *time.Timer
	lastScore     int
	lastScoreSeen bool
	finalScore    int
	finalSeen     bool
}

// New creates an Observer publishing onto the given bus.
func New(bus pubsub.PubSubClient, markers Markers) *Observer {
	return &Observer{
		bus:        bus,
		markers:    markers,
		ClickDelay: 500 * time.Millisecond,
	}
}

// ApplyInsertion processes one structural mutation batch. Every node in the
// batch is tested against every marker; a miss is a non-match, not an error.
func (o *Observer) ApplyInsertion(batch []Node) {
	for _, node := range batch {
		if o.matches(node, o.markers.EndScreen) {
			o.emitTerminal("end screen")
		}
		if o.matches(node, o.markers.FinalScore) || o.matches(node, o.markers.RoundScore) {
			if score, ok := parseScore(node.Text); ok {
				o.recordFinalScore(score)
			}
		}
		if o.matches(node, o.markers.FinishControl) && strings.Contains(node.Text, o.markers.FinishLabel) {
			o.armFinishControl()
		}
	}
}

// ApplyText processes a text-content mutation. Some score displays update
// their text without a parent structural change, so this is a separate path.
func (o *Observer) ApplyText(node Node) {
	if !o.matches(node, o.markers.ScoreDisplay) && !o.matches(node, o.markers.FinalScore) {
		return
	}
	score, ok := parseScore(node.Text)
	if !ok {
		return
	}

	o.mu.Lock()
	if o.matches(node, o.markers.FinalScore) {
		o.finalScore = score
		o.finalSeen = true
	}
	changed := !o.lastScoreSeen || score != o.lastScore
	o.lastScore = score
	o.lastScoreSeen = true
	o.mu.Unlock()

	if changed {
		log.Debug("Live score display changed", "score", score)
		o.bus.Publish(pubsub.TypePageSignal, Signal{Kind: SignalLiveScore, Score: score})
	}
}

// ApplyClick processes a click on an observed element. The finish control is
// one-shot: the first click schedules the terminal signal after ClickDelay,
// later clicks are ignored.
func (o *Observer) ApplyClick(node Node) {
	if !o.matches(node, o.markers.FinishControl) {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.finishArmed || o.finishClicked {
		return
	}
	o.finishClicked = true
	log.Debug("Finish control clicked, scheduling terminal signal", "delay", o.ClickDelay)
	o.clickTimer = time.AfterFunc(o.ClickDelay, func() {
		o.emitTerminal("finish click")
	})
}

// ReadFinalScore returns the last end-of-match score the page displayed, for
// the reconciler's final correction read.
func (o *Observer) ReadFinalScore() (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finalSeen {
		return o.finalScore, true
	}
	return 0, false
}

// Reset clears per-match page state. Called when a match context ends; it
// also cancels a pending finish-click timer, matching the page-context
// teardown the original relied on.
func (o *Observer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.clickTimer != nil {
		o.clickTimer.Stop()
		o.clickTimer = nil
	}
	o.terminalSent = false
	o.finishArmed = false
	o.finishClicked = false
	o.lastScoreSeen = false
	o.finalSeen = false
}

func (o *Observer) emitTerminal(source string) {
	o.mu.Lock()
	if o.terminalSent {
		o.mu.Unlock()
		return
	}
	o.terminalSent = true
	o.mu.Unlock()

	log.Info("Match end detected on page", "source", source)
	o.bus.Publish(pubsub.TypePageSignal, Signal{Kind: SignalTerminal})
}

func (o *Observer) recordFinalScore(score int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finalScore = score
	o.finalSeen = true
}

func (o *Observer) armFinishControl() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finishArmed {
		return
	}
	o.finishArmed = true
	log.Debug("Finish control detected, arming one-shot click trigger")
}

func (o *Observer) matches(node Node, marker string) bool {
	if marker == "" {
		return false
	}
	for _, class := range node.Classes {
		if strings.HasPrefix(class, marker) {
			return true
		}
	}
	return false
}

// parseScore strips everything but digits and parses the rest, mirroring how
// the page formats scores ("12,345 points").
func parseScore(text string) (int, bool) {
	var digits strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	score, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return score, true
}
