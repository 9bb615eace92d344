package persist

import (
	"context"
	"sync"

	"bullseye-tracker/internal/bullseye"
)

// Mock is a mock implementation of the Gate interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies for method calls
	SaveMatchFunc   func(record bullseye.MatchRecord) (bool, error)
	ListMatchesFunc func() ([]bullseye.MatchRecord, error)

	// Call records
	SaveMatchCalls   []bullseye.MatchRecord
	DeleteMatchCalls []string
	ClearAllCount    int
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) SaveMatch(_ context.Context, record bullseye.MatchRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveMatchCalls = append(m.SaveMatchCalls, record)
	if m.SaveMatchFunc != nil {
		return m.SaveMatchFunc(record)
	}
	return true, nil
}

func (m *Mock) ListMatches(_ context.Context) ([]bullseye.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListMatchesFunc != nil {
		return m.ListMatchesFunc()
	}
	return nil, nil
}

func (m *Mock) DeleteMatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteMatchCalls = append(m.DeleteMatchCalls, id)
	return nil
}

func (m *Mock) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearAllCount++
	return nil
}

// Saves returns a copy of the recorded SaveMatch calls.
func (m *Mock) Saves() []bullseye.MatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bullseye.MatchRecord, len(m.SaveMatchCalls))
	copy(out, m.SaveMatchCalls)
	return out
}
