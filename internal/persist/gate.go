package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/metrics"
	"bullseye-tracker/internal/store"
	"bullseye-tracker/internal/syncer"

	"github.com/charmbracelet/log"
)

type gate struct {
	store   store.KVStore
	sync    syncer.SyncClient
	metrics metrics.Metrics
}

// New creates a persistence gate over the given store.
func New(kv store.KVStore, sync syncer.SyncClient, metricsSvc metrics.Metrics) Gate {
	return &gate{
		store:   kv,
		sync:    sync,
		metrics: metricsSvc,
	}
}

// SaveMatch is the durable counterpart of the reconciler's in-memory
// re-entrancy guard: memory resets on page reload, the log does not, so the
// id check here is what makes saves at-most-once across sessions.
func (g *gate) SaveMatch(ctx context.Context, record bullseye.MatchRecord) (bool, error) {
	games, err := g.readLog(ctx)
	if err != nil {
		return false, err
	}

	for _, existing := range games {
		if existing.ID == record.ID {
			log.Info("Match already saved, skipping append", "matchID", record.ID)
			g.metrics.IncDuplicatesDropped()
			g.clearLiveSnapshot(ctx)
			return false, nil
		}
	}

	games = append(games, record)
	if err := g.writeLog(ctx, games); err != nil {
		return false, fmt.Errorf("failed to append match %s: %w", record.ID, err)
	}
	status := "finished"
	if record.GaveUp {
		status = "abandoned"
	}
	log.Info("Match saved", "matchID", record.ID, "status", status, "score", record.Score)
	g.metrics.IncMatchesSaved()
	g.clearLiveSnapshot(ctx)

	if g.sync != nil && g.sync.Enabled() {
		// Local persistence is authoritative; sync runs detached and its
		// failure is only logged.
		go g.syncMatch(record)
	}
	return true, nil
}

func (g *gate) ListMatches(ctx context.Context) ([]bullseye.MatchRecord, error) {
	return g.readLog(ctx)
}

func (g *gate) DeleteMatch(ctx context.Context, id string) error {
	games, err := g.readLog(ctx)
	if err != nil {
		return err
	}
	kept := games[:0]
	for _, game := range games {
		if game.ID != id {
			kept = append(kept, game)
		}
	}
	if len(kept) == len(games) {
		return nil
	}
	return g.writeLog(ctx, kept)
}

func (g *gate) ClearAll(ctx context.Context) error {
	return g.writeLog(ctx, []bullseye.MatchRecord{})
}

func (g *gate) readLog(ctx context.Context) ([]bullseye.MatchRecord, error) {
	values, err := g.store.Get(ctx, store.KeyGames)
	if err != nil {
		return nil, fmt.Errorf("failed to read match log: %w", err)
	}
	raw, ok := values[store.KeyGames]
	if !ok {
		return nil, nil
	}
	var games []bullseye.MatchRecord
	if err := json.Unmarshal(raw, &games); err != nil {
		// Malformed stored data is treated as no data, not as a hard error.
		log.Error("Match log is malformed, treating as empty", "error", err)
		return nil, nil
	}
	return games, nil
}

func (g *gate) writeLog(ctx context.Context, games []bullseye.MatchRecord) error {
	raw, err := json.Marshal(games)
	if err != nil {
		return fmt.Errorf("failed to marshal match log: %w", err)
	}
	return g.store.Set(ctx, map[string]json.RawMessage{store.KeyGames: raw})
}

func (g *gate) clearLiveSnapshot(ctx context.Context) {
	if err := g.store.Remove(ctx, store.KeyLiveGame); err != nil {
		log.Error("Failed to clear live snapshot", "error", err)
	}
}

func (g *gate) syncMatch(record bullseye.MatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.sync.SyncMatch(ctx, record); err != nil {
		log.Error("Sync failed", "matchID", record.ID, "error", err)
		g.metrics.IncSyncFailed()
		return
	}
	log.Info("Match synced to remote backend", "matchID", record.ID)
	g.metrics.IncSyncSent()
}
