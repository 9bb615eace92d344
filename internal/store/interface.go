package store

import (
	"context"
	"encoding/json"
)

// Change describes one key's mutation, mirroring the change records the
// extension storage API hands to its listeners.
type Change struct {
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// Listener receives the full change set of a single mutation.
type Listener func(changes map[string]Change)

// KVStore is the generic key-value persistence contract. Values are JSON
// documents; Get omits keys that are not present.
type KVStore interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]json.RawMessage) error
	Remove(ctx context.Context, key string) error
	OnChange(l Listener) int
	RemoveListener(id int)
}

// Well-known keys. The durable match log and the live snapshot share the
// store with UI preference keys owned by other surfaces.
const (
	KeyGames    = "games"
	KeyLiveGame = "currentLiveGame"
)
