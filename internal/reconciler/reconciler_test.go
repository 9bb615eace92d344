package reconciler_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/metrics"
	"bullseye-tracker/internal/pageobs"
	"bullseye-tracker/internal/persist"
	"bullseye-tracker/internal/profiles"
	"bullseye-tracker/internal/pubsub"
	"bullseye-tracker/internal/reconciler"
	"bullseye-tracker/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	matchURL = "https://www.geoguessr.com/bullseye/11111111-2222-3333-4444-555555555555"
	partyURL = "https://www.geoguessr.com/party"
)

type pageStub struct {
	mu      sync.Mutex
	final   int
	finalOK bool
	resets  int
}

func (p *pageStub) ReadFinalScore() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.final, p.finalOK
}

func (p *pageStub) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
}

func (p *pageStub) resetCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

type fixture struct {
	rec  *reconciler.Reconciler
	bus  *pubsub.Mock
	gate *persist.Mock
	kv   *store.Mock
	page *pageStub
}

func setup(t *testing.T, profileClient profiles.ProfileClient) *fixture {
	t.Helper()
	f := &fixture{
		bus:  pubsub.NewMock(),
		gate: persist.NewMock(),
		kv:   store.NewMock(),
		page: &pageStub{},
	}
	f.rec = reconciler.New(f.bus, f.gate, f.kv, profileClient, metrics.NewMock(), f.page)
	f.rec.Wire()
	return f
}

func (f *fixture) publish(t *testing.T, typ pubsub.EventType, payload any) {
	t.Helper()
	require.NoError(t, f.bus.Publish(typ, payload))
}

func (f *fixture) navigate(t *testing.T, url string) {
	t.Helper()
	f.publish(t, pubsub.TypeNavigation, reconciler.NavigationEvent{URL: url})
}

func frame(t *testing.T, raw string) bullseye.WSMessage {
	t.Helper()
	var m bullseye.WSMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func scoredRound(n, points int, start time.Time) bullseye.Round {
	return bullseye.Round{RoundNumber: n, StartTime: start, Score: &bullseye.Score{Points: points}}
}

func TestOutOfOrderRoundsAreSummedBySortedOrder(t *testing.T) {
	f := setup(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.rec.Now = func() time.Time { return base.Add(95 * time.Second) }

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID: "G1",
		Rounds: []bullseye.Round{
			scoredRound(2, 11500, base.Add(40*time.Second)),
			scoredRound(1, 9000, base),
		},
	})

	assert.Equal(t, bullseye.StateLive, f.rec.State())
	cur := f.rec.CurrentRecord()
	require.NotNil(t, cur)
	assert.Equal(t, 20500, cur.Score)
	require.Len(t, cur.Rounds, 2)
	assert.Equal(t, 1, cur.Rounds[0].RoundNumber)
	assert.Equal(t, 2, cur.Rounds[1].RoundNumber)
	assert.Equal(t, 95, cur.TotalDuration, "duration counts from the earliest round start")
}

func TestLobbyThenFinishedFrameProducesRecord(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeLobbyData, bullseye.LobbyPayload{
		GameLobbyID: "abc",
		Players:     []bullseye.PlayerRef{{Nick: "Ann"}},
		MapName:     "World",
	})
	f.publish(t, pubsub.TypeWSEvent, frame(t, `{"code":"BullseyeRoundEnded","bullseye":{"state":{"status":"Finished"}}}`))

	assert.Equal(t, bullseye.StateSaved, f.rec.State())
	saves := f.gate.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, "abc", saves[0].ID)
	assert.Equal(t, "World", saves[0].MapName)
	require.Len(t, saves[0].Players, 1)
	assert.Equal(t, "Ann", saves[0].Players[0].Nick)
	assert.False(t, saves[0].GaveUp)
}

func TestNavigationWithoutDataSavesNothing(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	assert.Equal(t, bullseye.StateInitializing, f.rec.State())

	f.navigate(t, partyURL)
	assert.Equal(t, bullseye.StateIdle, f.rec.State())
	assert.Empty(t, f.gate.Saves())
	assert.Nil(t, f.kv.Value(store.KeyLiveGame), "no live snapshot before the match goes live")
}

func TestDuplicateTerminalSignalsSaveOnce(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})

	f.publish(t, pubsub.TypePageSignal, pageobs.Signal{Kind: pageobs.SignalTerminal})
	f.publish(t, pubsub.TypeWSEvent, frame(t, `{"code":"BullseyeRoundEnded","bullseye":{"state":{"gameId":"G1","status":"Finished"}}}`))
	f.publish(t, pubsub.TypePageSignal, pageobs.Signal{Kind: pageobs.SignalTerminal})

	assert.Equal(t, bullseye.StateSaved, f.rec.State())
	assert.Len(t, f.gate.Saves(), 1)
}

func TestLeavingMatchContextSavesAbandonment(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})
	f.navigate(t, partyURL)

	saves := f.gate.Saves()
	require.Len(t, saves, 1)
	assert.True(t, saves[0].GaveUp)
	assert.Equal(t, bullseye.StateIdle, f.rec.State(), "leaving to the party screen ends the lifecycle")
}

func TestGameAbortedSavesAbandonment(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})
	f.publish(t, pubsub.TypeWSEvent, frame(t, `{"code":"GameAborted","bullseye":null}`))

	saves := f.gate.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, "G1", saves[0].ID)
	assert.True(t, saves[0].GaveUp)
}

func TestAbortBeforeDataDiscards(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeWSEvent, frame(t, `{"code":"GameAborted","bullseye":null}`))

	assert.Equal(t, bullseye.StateIdle, f.rec.State())
	assert.Empty(t, f.gate.Saves())
}

func TestScoreNeverRegresses(t *testing.T) {
	f := setup(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID: "G1",
		Rounds: []bullseye.Round{scoredRound(1, 3000, base)},
	})
	assert.Equal(t, 3000, f.rec.CurrentRecord().Score)

	f.publish(t, pubsub.TypePageSignal, pageobs.Signal{Kind: pageobs.SignalLiveScore, Score: 5000})
	assert.Equal(t, 5000, f.rec.CurrentRecord().Score)

	// A replayed stale payload must not drag the score back down.
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID: "G1",
		Rounds: []bullseye.Round{scoredRound(1, 3000, base)},
	})
	assert.Equal(t, 5000, f.rec.CurrentRecord().Score)

	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID: "G1",
		Rounds: []bullseye.Round{
			scoredRound(1, 3000, base),
			scoredRound(2, 9000, base.Add(time.Minute)),
		},
	})
	assert.Equal(t, 12000, f.rec.CurrentRecord().Score, "the round sum wins once it catches up")
}

func TestEndScreenScoreCorrection(t *testing.T) {
	f := setup(t, nil)
	f.page.final = 20000
	f.page.finalOK = true
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID: "G1",
		Rounds: []bullseye.Round{scoredRound(1, 18000, base)},
	})
	f.publish(t, pubsub.TypePageSignal, pageobs.Signal{Kind: pageobs.SignalTerminal})

	saves := f.gate.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, 20000, saves[0].Score)
}

func TestAbandonmentSkipsScoreCorrection(t *testing.T) {
	f := setup(t, nil)
	f.page.final = 99999
	f.page.finalOK = true

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})
	f.navigate(t, partyURL)

	saves := f.gate.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, 0, saves[0].Score, "an end screen left over from another match must not leak in")
}

func TestManualSave(t *testing.T) {
	t.Run("fails with no live match", func(t *testing.T) {
		f := setup(t, nil)
		assert.ErrorIs(t, f.rec.ManualSave(), reconciler.ErrNoMatchData)

		f.navigate(t, matchURL)
		assert.ErrorIs(t, f.rec.ManualSave(), reconciler.ErrNoMatchData, "an initializing match has nothing to save")
	})

	t.Run("saves a live match", func(t *testing.T) {
		f := setup(t, nil)
		f.navigate(t, matchURL)
		f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})

		require.NoError(t, f.rec.ManualSave())
		assert.Equal(t, bullseye.StateSaved, f.rec.State())
		assert.Len(t, f.gate.Saves(), 1)
	})
}

func TestInitTimeoutRevertsToIdle(t *testing.T) {
	f := setup(t, nil)
	f.rec.InitTimeout = 15 * time.Millisecond

	f.navigate(t, matchURL)
	assert.Equal(t, bullseye.StateInitializing, f.rec.State())

	assert.Eventually(t, func() bool {
		return f.rec.State() == bullseye.StateIdle
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.gate.Saves())
}

func TestInitTimeoutDisarmedByData(t *testing.T) {
	f := setup(t, nil)
	f.rec.InitTimeout = 15 * time.Millisecond

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, bullseye.StateLive, f.rec.State())
}

func TestNicknameLookup(t *testing.T) {
	client := profiles.NewMockClient()
	client.GetNickFunc = func(playerID string) (string, error) { return "BullseyeAce", nil }
	f := setup(t, client)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID:  "G1",
		Players: []bullseye.PlayerRef{{PlayerID: "p1"}},
	})

	assert.Eventually(t, func() bool {
		cur := f.rec.CurrentRecord()
		return cur != nil && len(cur.Players) == 1 && cur.Players[0].Nick == "BullseyeAce"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"p1"}, client.Calls())
}

func TestKnownNickSurvivesIDOnlyRoster(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeLobbyData, bullseye.LobbyPayload{
		GameLobbyID: "G1",
		Players:     []bullseye.PlayerRef{{PlayerID: "p1", Nick: "Ann"}},
	})
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID:  "G1",
		Players: []bullseye.PlayerRef{{PlayerID: "p1"}},
	})

	cur := f.rec.CurrentRecord()
	require.NotNil(t, cur)
	require.Len(t, cur.Players, 1)
	assert.Equal(t, "Ann", cur.Players[0].Nick)
}

func TestLobbyRosterCachedWhileIdle(t *testing.T) {
	f := setup(t, nil)

	// Lobby fetch happens on the party screen, before any match context.
	f.publish(t, pubsub.TypeLobbyData, bullseye.LobbyPayload{
		GameLobbyID: "G1",
		Players:     []bullseye.PlayerRef{{PlayerID: "p1", Nick: "Ann"}},
	})
	assert.Equal(t, bullseye.StateIdle, f.rec.State(), "a lobby fetch alone must not open a match")

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID:  "G1",
		Players: []bullseye.PlayerRef{{PlayerID: "p1"}},
	})

	cur := f.rec.CurrentRecord()
	require.NotNil(t, cur)
	require.Len(t, cur.Players, 1)
	assert.Equal(t, "Ann", cur.Players[0].Nick)
}

func TestMapNameAndOptionsPrecedence(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID:  "G1",
		MapName: "World",
		Options: &bullseye.GameOptions{MapSlug: "world", RoundTime: 60},
	})
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{
		GameID:  "G1",
		MapName: "Famous Places",
		Options: &bullseye.GameOptions{MapSlug: "famous-places", RoundTime: 90},
	})

	cur := f.rec.CurrentRecord()
	require.NotNil(t, cur)
	assert.Equal(t, "Famous Places", cur.MapName, "latest non-empty map name wins")
	assert.Equal(t, "world", cur.MapSlug, "first map slug is kept")
	assert.Equal(t, 60, cur.RoundTime, "first round time is kept")
}

func TestLiveSnapshotWritten(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})

	raw := f.kv.Value(store.KeyLiveGame)
	require.NotNil(t, raw)
	var snap bullseye.MatchRecord
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "G1", snap.ID)
	assert.Equal(t, matchURL, snap.URL)
}

func TestNewMatchAfterSaveResets(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})
	f.publish(t, pubsub.TypeWSEvent, frame(t, `{"code":"GameAborted","bullseye":null}`))
	require.Equal(t, bullseye.StateSaved, f.rec.State())

	// Late frames for the saved match are no-ops.
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})
	assert.Equal(t, bullseye.StateSaved, f.rec.State())
	assert.Len(t, f.gate.Saves(), 1)

	// A different game id means a new match started.
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G2"})
	assert.Equal(t, bullseye.StateLive, f.rec.State())
	cur := f.rec.CurrentRecord()
	require.NotNil(t, cur)
	assert.Equal(t, "G2", cur.ID)
}

func TestFallbackIDAssignedAtFinalize(t *testing.T) {
	f := setup(t, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.rec.Now = func() time.Time { return fixed }

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeWSEvent, frame(t, `{"code":"BullseyeRoundStarted","bullseye":{"state":{"status":"Started"}}}`))
	f.publish(t, pubsub.TypePageSignal, pageobs.Signal{Kind: pageobs.SignalTerminal})

	saves := f.gate.Saves()
	require.Len(t, saves, 1)
	assert.Equal(t, bullseye.FallbackID(fixed), saves[0].ID)
}

func TestGuessResponseRequiresLiveMatch(t *testing.T) {
	f := setup(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.publish(t, pubsub.TypeGuessData, bullseye.GameState{GameID: "G1"})
	assert.Equal(t, bullseye.StateIdle, f.rec.State(), "a guess response alone must not open a match")

	f.navigate(t, matchURL)
	f.publish(t, pubsub.TypeMatchData, bullseye.GameState{GameID: "G1"})
	f.publish(t, pubsub.TypeGuessData, bullseye.GameState{
		GameID: "G1",
		Rounds: []bullseye.Round{scoredRound(1, 7500, base)},
	})

	assert.Equal(t, 7500, f.rec.CurrentRecord().Score)
}

func TestPageStateResetOnNewContext(t *testing.T) {
	f := setup(t, nil)

	f.navigate(t, matchURL)
	before := f.page.resetCount()
	f.navigate(t, partyURL)
	assert.Greater(t, f.page.resetCount(), before, "leaving the match context resets the page observer")
}
