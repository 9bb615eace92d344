package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"bullseye-tracker/internal/database"
	"bullseye-tracker/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary in-memory SQLite database for testing.
func setupTestStore(t *testing.T) store.KVStore {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)

	return store.New(db)
}

func TestSetAndGet(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()

	err := kv.Set(ctx, map[string]json.RawMessage{
		"games":   json.RawMessage(`[{"id":"g1"}]`),
		"apiUrl":  json.RawMessage(`"http://localhost:9999"`),
	})
	require.NoError(t, err)

	values, err := kv.Get(ctx, "games", "apiUrl", "missing")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"g1"}]`, string(values["games"]))
	assert.JSONEq(t, `"http://localhost:9999"`, string(values["apiUrl"]))
	assert.NotContains(t, values, "missing", "absent keys should be omitted")
}

func TestSetOverwrites(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string]json.RawMessage{"games": json.RawMessage(`[]`)}))
	require.NoError(t, kv.Set(ctx, map[string]json.RawMessage{"games": json.RawMessage(`[{"id":"g1"}]`)}))

	values, err := kv.Get(ctx, "games")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"g1"}]`, string(values["games"]))
}

func TestRemove(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string]json.RawMessage{"currentLiveGame": json.RawMessage(`{"id":"g1"}`)}))
	require.NoError(t, kv.Remove(ctx, "currentLiveGame"))

	values, err := kv.Get(ctx, "currentLiveGame")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestOnChange(t *testing.T) {
	kv := setupTestStore(t)
	ctx := context.Background()

	var got []map[string]store.Change
	id := kv.OnChange(func(changes map[string]store.Change) {
		got = append(got, changes)
	})

	require.NoError(t, kv.Set(ctx, map[string]json.RawMessage{"games": json.RawMessage(`[]`)}))
	require.NoError(t, kv.Set(ctx, map[string]json.RawMessage{"games": json.RawMessage(`[1]`)}))
	require.NoError(t, kv.Remove(ctx, "games"))

	require.Len(t, got, 3)
	assert.Nil(t, got[0]["games"].OldValue)
	assert.JSONEq(t, `[]`, string(got[0]["games"].NewValue))
	assert.JSONEq(t, `[]`, string(got[1]["games"].OldValue))
	assert.JSONEq(t, `[1]`, string(got[1]["games"].NewValue))
	assert.JSONEq(t, `[1]`, string(got[2]["games"].OldValue))
	assert.Nil(t, got[2]["games"].NewValue)

	kv.RemoveListener(id)
	require.NoError(t, kv.Set(ctx, map[string]json.RawMessage{"games": json.RawMessage(`[2]`)}))
	assert.Len(t, got, 3, "removed listener should not fire")
}

func TestRemoveMissingKeyDoesNotNotify(t *testing.T) {
	kv := setupTestStore(t)

	fired := false
	kv.OnChange(func(map[string]store.Change) { fired = true })

	require.NoError(t, kv.Remove(context.Background(), "nope"))
	assert.False(t, fired)
}
