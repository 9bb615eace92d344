package bullseye

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventCode identifies an application-level WebSocket event.
type EventCode string

const (
	CodeRoundStarted EventCode = "BullseyeRoundStarted"
	CodeGuess        EventCode = "BullseyeGuess"
	CodeRoundEnded   EventCode = "BullseyeRoundEnded"
	CodeGameAborted  EventCode = "GameAborted"
)

// GameStatus is the status field embedded in a game state payload.
type GameStatus string

const (
	GameStatusStarted  GameStatus = "Started"
	GameStatusFinished GameStatus = "Finished"
)

// MatchState tracks where a match is in its reconciliation lifecycle.
type MatchState string

const (
	StateIdle         MatchState = "IDLE"
	StateInitializing MatchState = "INITIALIZING"
	StateLive         MatchState = "LIVE"
	StateFinalizing   MatchState = "FINALIZING"
	StateSaved        MatchState = "SAVED"
)

// PlayerRef is one entry in a match's player list. Older saved records store
// players as bare nickname strings, so unmarshalling accepts both forms.
type PlayerRef struct {
	PlayerID string  `json:"playerId,omitempty"`
	Nick     string  `json:"nick,omitempty"`
	Guesses  []Guess `json:"guesses,omitempty"`
}

func (p *PlayerRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var nick string
		if err := json.Unmarshal(data, &nick); err != nil {
			return err
		}
		*p = PlayerRef{Nick: nick}
		return nil
	}
	type alias PlayerRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = PlayerRef(a)
	return nil
}

// DisplayName returns the best name we have for the player.
func (p PlayerRef) DisplayName() string {
	if p.Nick != "" {
		return p.Nick
	}
	return p.PlayerID
}

// HasNick reports whether the player carries a resolved nickname, as opposed
// to an identifier-only entry from a WebSocket state payload.
func (p PlayerRef) HasNick() bool {
	return p.Nick != "" && p.Nick != p.PlayerID && p.Nick != "Unknown"
}

// Score is the per-guess / per-round scoring block.
type Score struct {
	Points               int     `json:"points"`
	MaxPoints            int     `json:"maxPoints,omitempty"`
	Distance             float64 `json:"distance,omitempty"`
	IsAnswerWithinRadius bool    `json:"isAnswerWithinRadius,omitempty"`
}

// Guess is a single submitted guess within a round.
type Guess struct {
	RoundNumber int     `json:"roundNumber"`
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
	Size        int     `json:"size,omitempty"`
	IsDraft     bool    `json:"isDraft,omitempty"`
	Score       *Score  `json:"score,omitempty"`
}

// Round is one round of a match as reported by the remote service. Rounds
// are not guaranteed to arrive in order; roundNumber is the ordering key.
type Round struct {
	RoundNumber int       `json:"roundNumber"`
	StartTime   time.Time `json:"startTime,omitzero"`
	EndTime     time.Time `json:"endTime,omitzero"`
	State       string    `json:"state,omitempty"`
	Score       *Score    `json:"score,omitempty"`
}

// Points returns the round's points, zero when no score is present yet.
func (r Round) Points() int {
	if r.Score == nil {
		return 0
	}
	return r.Score.Points
}

// GameOptions is the options block of a game state or lobby payload.
type GameOptions struct {
	RoundCount int    `json:"roundCount,omitempty"`
	MapSlug    string `json:"mapSlug,omitempty"`
	RoundTime  int    `json:"roundTime,omitempty"`
}

// GameState is the authoritative match state payload, delivered either by
// the match-detail endpoint or embedded in WebSocket round events.
type GameState struct {
	GameID             string       `json:"gameId,omitempty"`
	Status             GameStatus   `json:"status,omitempty"`
	Options            *GameOptions `json:"options,omitempty"`
	Version            int          `json:"version,omitempty"`
	CurrentRoundNumber int          `json:"currentRoundNumber,omitempty"`
	Rounds             []Round      `json:"rounds,omitempty"`
	Players            []PlayerRef  `json:"players,omitempty"`
	HostPlayerID       string       `json:"hostPlayerId,omitempty"`
	MapName            string       `json:"mapName,omitempty"`
}

// LobbyPayload is the lobby fetch/join response. It is the primary source of
// player nicknames, which WebSocket state payloads omit.
type LobbyPayload struct {
	GameLobbyID string       `json:"gameLobbyId,omitempty"`
	Players     []PlayerRef  `json:"players,omitempty"`
	MapName     string       `json:"mapName,omitempty"`
	GameOptions *GameOptions `json:"gameOptions,omitempty"`
}

// WSMessage is a parsed WebSocket frame carrying a bullseye event.
type WSMessage struct {
	Code     EventCode `json:"code"`
	GameID   string    `json:"gameId,omitempty"`
	Bullseye *struct {
		State *GameState `json:"state,omitempty"`
		Guess *Guess     `json:"guess,omitempty"`
	} `json:"bullseye,omitempty"`
}

// State returns the embedded game state, or nil when the frame carries none
// (GameAborted frames usually carry a null bullseye block).
func (m *WSMessage) State() *GameState {
	if m.Bullseye == nil {
		return nil
	}
	return m.Bullseye.State
}

// MatchRecord is the canonical persisted representation of one match. The
// JSON shape matches what the extension UI surfaces already read.
type MatchRecord struct {
	ID            string      `json:"id"`
	Players       []PlayerRef `json:"players,omitempty"`
	MapName       string      `json:"mapName,omitempty"`
	MapSlug       string      `json:"mapSlug,omitempty"`
	RoundTime     int         `json:"roundTime,omitempty"`
	Score         int         `json:"score"`
	TotalDuration int         `json:"totalDuration,omitempty"`
	URL           string      `json:"url,omitempty"`
	Date          time.Time   `json:"date,omitzero"`
	GaveUp        bool        `json:"gaveUp"`

	Rounds []Round `json:"rounds,omitempty"`
}

// FallbackID builds a time-based match identifier for matches where the
// remote service never supplied one.
func FallbackID(now time.Time) string {
	return fmt.Sprintf("game_%d", now.UnixMilli())
}
