package syncer

import (
	"context"

	"bullseye-tracker/internal/bullseye"
)

// SyncClient pushes finalized matches to the optional remote backend.
// Sync is strictly best-effort: the local save is authoritative and a sync
// failure must never affect it.
type SyncClient interface {
	Enabled() bool
	SyncMatch(ctx context.Context, record bullseye.MatchRecord) error
}
