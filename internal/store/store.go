package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type kvStore struct {
	db *sql.DB

	// mu serializes read-modify-write sequences across ingest sessions.
	// Within one session writes are already serialized by the bus.
	mu sync.Mutex

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// New creates a KVStore backed by the given database.
func New(db *sql.DB) KVStore {
	return &kvStore{
		db:        db,
		listeners: make(map[int]Listener),
	}
}

func (s *kvStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kv WHERE key IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kv store: %w", err)
	}
	defer rows.Close()

	result := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			log.Error("Failed to scan kv row", "error", err)
			continue
		}
		result[key] = json.RawMessage(value)
	}
	return result, rows.Err()
}

func (s *kvStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	old, err := s.Get(ctx, keys...)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	changes := make(map[string]Change, len(values))
	for key, value := range values {
		if _, err := stmt.Exec(key, string(value), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set key %q: %w", key, err)
		}
		changes[key] = Change{OldValue: old[key], NewValue: value}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.notify(changes)
	return nil
}

func (s *kvStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	if oldValue, ok := old[key]; ok {
		s.notify(map[string]Change{key: {OldValue: oldValue}})
	}
	return nil
}

func (s *kvStore) OnChange(l Listener) int {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return id
}

func (s *kvStore) RemoveListener(id int) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	delete(s.listeners, id)
}

func (s *kvStore) notify(changes map[string]Change) {
	s.listenerMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenerMu.Unlock()

	for _, l := range ls {
		l(changes)
	}
}
