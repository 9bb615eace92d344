package syncer

import (
	"context"
	"sync"

	"bullseye-tracker/internal/bullseye"
)

// MockClient is a mock implementation of the SyncClient interface for
// testing. It is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	EnabledValue bool

	// Spies for method calls
	SyncMatchFunc func(record bullseye.MatchRecord) error

	// Call records
	SyncMatchCalls []bullseye.MatchRecord
}

// NewMockClient creates a new mock instance.
func NewMockClient() *MockClient {
	return &MockClient{EnabledValue: true}
}

func (m *MockClient) Enabled() bool {
	return m.EnabledValue
}

func (m *MockClient) SyncMatch(_ context.Context, record bullseye.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncMatchCalls = append(m.SyncMatchCalls, record)
	if m.SyncMatchFunc != nil {
		return m.SyncMatchFunc(record)
	}
	return nil
}

// Calls returns a copy of the recorded syncs.
func (m *MockClient) Calls() []bullseye.MatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bullseye.MatchRecord, len(m.SyncMatchCalls))
	copy(out, m.SyncMatchCalls)
	return out
}
