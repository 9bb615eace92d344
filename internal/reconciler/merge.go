package reconciler

import (
	"context"
	"sort"
	"time"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/pubsub"

	"github.com/charmbracelet/log"
)

// mergeLocked folds an authoritative game state payload into the held record.
// Payloads arrive out of order and partially populated, so every field has an
// explicit precedence rule instead of a wholesale overwrite.
func (r *Reconciler) mergeLocked(incoming bullseye.GameState) {
	start := time.Now()
	defer func() { r.metrics.ObserveMergeDuration(time.Since(start).Seconds()) }()

	cur := r.current
	if cur.ID == "" && incoming.GameID != "" {
		cur.ID = incoming.GameID
	}
	// Map name: the most recently received non-empty value wins.
	if incoming.MapName != "" {
		cur.MapName = incoming.MapName
	}
	// Options: the first non-empty value is kept for good.
	if opts := incoming.Options; opts != nil {
		if cur.MapSlug == "" {
			cur.MapSlug = opts.MapSlug
		}
		if cur.RoundTime == 0 {
			cur.RoundTime = opts.RoundTime
		}
	}
	cur.Rounds = mergeRounds(cur.Rounds, incoming.Rounds)
	if len(incoming.Players) > 0 {
		cur.Players = r.mergePlayersLocked(cur.Players, incoming.Players)
	}
	cur.Score = max(totalPoints(cur.Rounds), r.domScore)
	if d, ok := matchDuration(cur.Rounds, r.Now()); ok {
		cur.TotalDuration = d
	}

	if r.state != bullseye.StateLive {
		r.toLiveLocked()
	}
	r.resolveNicksLocked()
}

// applyLobbyLocked folds a lobby payload into the held record. Lobby payloads
// never carry rounds; they are the identity and roster source.
func (r *Reconciler) applyLobbyLocked(payload bullseye.LobbyPayload) {
	if r.current == nil {
		r.current = &bullseye.MatchRecord{}
	}
	cur := r.current
	if cur.ID == "" && payload.GameLobbyID != "" {
		cur.ID = payload.GameLobbyID
	}
	if payload.MapName != "" {
		cur.MapName = payload.MapName
	}
	if opts := payload.GameOptions; opts != nil {
		if cur.MapSlug == "" {
			cur.MapSlug = opts.MapSlug
		}
		if cur.RoundTime == 0 {
			cur.RoundTime = opts.RoundTime
		}
	}
	if len(payload.Players) > 0 {
		cur.Players = r.mergePlayersLocked(cur.Players, payload.Players)
	}
	if r.state != bullseye.StateLive {
		r.toLiveLocked()
	}
	r.resolveNicksLocked()
}

// mergePlayersLocked applies an incoming roster over the known one. The
// incoming order is kept; a known nickname is never replaced by an
// identifier-only entry, and players missing from the incoming roster are
// retained.
func (r *Reconciler) mergePlayersLocked(known, incoming []bullseye.PlayerRef) []bullseye.PlayerRef {
	byID := make(map[string]bullseye.PlayerRef, len(known))
	for _, p := range known {
		if p.PlayerID != "" {
			byID[p.PlayerID] = p
		}
	}

	out := make([]bullseye.PlayerRef, 0, len(incoming))
	seen := make(map[string]bool, len(incoming))
	for _, in := range incoming {
		if in.PlayerID != "" {
			seen[in.PlayerID] = true
			if prev, ok := byID[in.PlayerID]; ok {
				if prev.HasNick() && !in.HasNick() {
					in.Nick = prev.Nick
				}
				if in.Guesses == nil {
					in.Guesses = prev.Guesses
				}
			}
			if !in.HasNick() {
				if nick, ok := r.lobbyNicks[in.PlayerID]; ok {
					in.Nick = nick
				}
			}
		}
		out = append(out, in)
	}
	for _, p := range known {
		if p.PlayerID == "" || !seen[p.PlayerID] {
			out = append(out, p)
		}
	}
	return out
}

func (r *Reconciler) cacheLobbyNicksLocked(players []bullseye.PlayerRef) {
	for _, p := range players {
		if p.PlayerID != "" && p.HasNick() {
			r.lobbyNicks[p.PlayerID] = p.Nick
		}
	}
}

// resolveNicksLocked kicks off a profile lookup for every player that still
// has no nickname. Lookups run detached and report back over the bus, so the
// merge path never blocks on the network.
func (r *Reconciler) resolveNicksLocked() {
	if r.profiles == nil || r.current == nil || r.current.ID == "" {
		return
	}
	gameID := r.current.ID
	for _, p := range r.current.Players {
		if p.PlayerID == "" || p.HasNick() || r.pendingNick[p.PlayerID] {
			continue
		}
		r.pendingNick[p.PlayerID] = true
		r.metrics.IncNickLookups()
		go r.lookupNick(gameID, p.PlayerID)
	}
}

func (r *Reconciler) lookupNick(gameID, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	nick, err := r.profiles.GetNick(ctx, playerID)
	if err != nil {
		log.Warn("Nickname lookup failed", "playerID", playerID, "error", err)
		r.metrics.IncNickLookupFailures()
		return
	}
	ev := NickResolvedEvent{GameID: gameID, PlayerID: playerID, Nick: nick}
	if err := r.bus.Publish(pubsub.TypeNickResolved, ev); err != nil {
		log.Error("Failed to publish nickname result", "playerID", playerID, "error", err)
	}
}

// mergeRounds folds incoming rounds into the known set keyed by round number.
// Fields only move forward: a later partial event never blanks out data an
// earlier event established.
func mergeRounds(known, incoming []bullseye.Round) []bullseye.Round {
	if len(incoming) == 0 {
		return known
	}
	out := append([]bullseye.Round(nil), known...)
	byNumber := make(map[int]int, len(out))
	for i, rd := range out {
		byNumber[rd.RoundNumber] = i
	}
	for _, in := range incoming {
		i, ok := byNumber[in.RoundNumber]
		if !ok {
			byNumber[in.RoundNumber] = len(out)
			out = append(out, in)
			continue
		}
		have := &out[i]
		if !in.StartTime.IsZero() {
			have.StartTime = in.StartTime
		}
		if !in.EndTime.IsZero() {
			have.EndTime = in.EndTime
		}
		if in.State != "" {
			have.State = in.State
		}
		if in.Score != nil {
			have.Score = in.Score
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].RoundNumber < out[b].RoundNumber })
	return out
}

func totalPoints(rounds []bullseye.Round) int {
	sum := 0
	for _, rd := range rounds {
		sum += rd.Points()
	}
	return sum
}

// matchDuration derives the elapsed seconds from the start of the earliest
// round. Rounds are kept sorted by round number, so the first timestamped
// round is the match start.
func matchDuration(rounds []bullseye.Round, now time.Time) (int, bool) {
	for _, rd := range rounds {
		if rd.StartTime.IsZero() {
			continue
		}
		d := int(now.Sub(rd.StartTime).Seconds())
		if d < 0 {
			return 0, false
		}
		return d, true
	}
	return 0, false
}
