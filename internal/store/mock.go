package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Mock is an in-memory KVStore for testing. It is safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	values    map[string]json.RawMessage
	listeners map[int]Listener
	nextID    int

	// Spies for method calls
	GetFunc    func(keys ...string) (map[string]json.RawMessage, error)
	SetFunc    func(values map[string]json.RawMessage) error
	RemoveFunc func(key string) error

	// Call records
	GetCalls    [][]string
	SetCalls    []map[string]json.RawMessage
	RemoveCalls []string
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		values:    make(map[string]json.RawMessage),
		listeners: make(map[int]Listener),
	}
}

func (m *Mock) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, keys)
	if m.GetFunc != nil {
		return m.GetFunc(keys...)
	}
	result := make(map[string]json.RawMessage)
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

func (m *Mock) Set(_ context.Context, values map[string]json.RawMessage) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, values)
	if m.SetFunc != nil {
		m.mu.Unlock()
		return m.SetFunc(values)
	}
	changes := make(map[string]Change, len(values))
	for k, v := range values {
		changes[k] = Change{OldValue: m.values[k], NewValue: v}
		m.values[k] = v
	}
	ls := m.snapshotListeners()
	m.mu.Unlock()
	for _, l := range ls {
		l(changes)
	}
	return nil
}

func (m *Mock) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	m.RemoveCalls = append(m.RemoveCalls, key)
	if m.RemoveFunc != nil {
		m.mu.Unlock()
		return m.RemoveFunc(key)
	}
	old, existed := m.values[key]
	delete(m.values, key)
	ls := m.snapshotListeners()
	m.mu.Unlock()
	if existed {
		for _, l := range ls {
			l(map[string]Change{key: {OldValue: old}})
		}
	}
	return nil
}

func (m *Mock) OnChange(l Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return id
}

func (m *Mock) RemoveListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// Seed pre-populates a key without recording a call or notifying listeners.
func (m *Mock) Seed(key string, value json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Value returns the current value for a key, nil when absent.
func (m *Mock) Value(key string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *Mock) snapshotListeners() []Listener {
	ls := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	return ls
}
