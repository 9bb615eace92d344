package pubsub

import (
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Mock is a synchronous PubSubClient for testing: Publish delivers to
// subscribers inline, so tests observe effects without timing games.
type Mock struct {
	mu       sync.Mutex
	handlers map[EventType][]Handler

	// Spies for method calls
	PublishFunc func(t EventType, data any) error

	// Call records
	PublishCalls []MockPublishCall
}

type MockPublishCall struct {
	Type EventType
	Data any
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{handlers: make(map[EventType][]Handler)}
}

func (m *Mock) Publish(t EventType, data any) error {
	m.mu.Lock()
	m.PublishCalls = append(m.PublishCalls, MockPublishCall{Type: t, Data: data})
	if m.PublishFunc != nil {
		m.mu.Unlock()
		return m.PublishFunc(t, data)
	}
	hs := make([]Handler, len(m.handlers[t]))
	copy(hs, m.handlers[t])
	m.mu.Unlock()

	msgpackData, err := msgpack.Marshal(data)
	if err != nil {
		return err
	}
	for _, h := range hs {
		h(Message{Type: t, Data: msgpackData})
	}
	return nil
}

// Published returns a copy of the call records, for assertions that race
// with timer goroutines.
func (m *Mock) Published() []MockPublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPublishCall, len(m.PublishCalls))
	copy(out, m.PublishCalls)
	return out
}

func (m *Mock) Subscribe(t EventType, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = append(m.handlers[t], h)
}

func (m *Mock) ProcessMessage(data []byte, returnValue any) error {
	return msgpack.Unmarshal(data, returnValue)
}

func (m *Mock) Close() {}
