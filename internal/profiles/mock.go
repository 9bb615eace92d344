package profiles

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of the ProfileClient interface for
// testing. It is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	// Spies for method calls
	GetNickFunc func(playerID string) (string, error)

	// Call records
	GetNickCalls []string
}

// NewMockClient creates a new mock instance.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) GetNick(_ context.Context, playerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetNickCalls = append(m.GetNickCalls, playerID)
	if m.GetNickFunc != nil {
		return m.GetNickFunc(playerID)
	}
	return "", nil
}

// Calls returns a copy of the recorded lookups.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.GetNickCalls))
	copy(out, m.GetNickCalls)
	return out
}
