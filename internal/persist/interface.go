package persist

import (
	"context"

	"bullseye-tracker/internal/bullseye"
)

// Gate converts finalized match records into durable appends, exactly once
// per match id, and owns the secondary surfaces over the durable log.
type Gate interface {
	// SaveMatch appends the record to the durable log unless an entry with
	// the same id already exists. It reports whether an append happened;
	// a duplicate is not an error. Either way the live snapshot is cleared.
	SaveMatch(ctx context.Context, record bullseye.MatchRecord) (bool, error)

	ListMatches(ctx context.Context) ([]bullseye.MatchRecord, error)
	DeleteMatch(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}
