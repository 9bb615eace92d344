package pubsub

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

type client struct {
	// lifecycle guards the queue against sends after close; handlerMu only
	// protects the registry so publishers never block the dispatcher.
	lifecycle sync.RWMutex
	closed    bool

	handlerMu sync.Mutex
	handlers  map[EventType][]Handler

	queue chan Message
	done  chan struct{}
}

// New creates a bus and starts its dispatcher goroutine.
func New() PubSubClient {
	c := &client{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan Message, 256),
		done:     make(chan struct{}),
	}
	go c.dispatch()
	return c
}

func (c *client) Publish(t EventType, data any) error {
	msgpackData, err := msgpack.Marshal(data)
	if err != nil {
		log.Error("MessagePack marshal error", "error", err, "type", t)
		return err
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closed {
		log.Debug("Dropping message published after close", "type", t)
		return nil
	}
	c.queue <- Message{Type: t, Data: msgpackData}
	return nil
}

// Subscribe registers a handler for a message type. Registration is expected
// at wiring time, before traffic flows.
func (c *client) Subscribe(t EventType, h Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[t] = append(c.handlers[t], h)
}

func (c *client) ProcessMessage(data []byte, returnValue any) error {
	// Unmarshal the MessagePack data into the provided pointer struct
	err := msgpack.Unmarshal(data, returnValue)
	if err != nil {
		log.Error("MessagePack unmarshal error", "error", err)
		return err
	}
	return nil
}

// Close stops the dispatcher after draining already-queued messages.
func (c *client) Close() {
	c.lifecycle.Lock()
	if c.closed {
		c.lifecycle.Unlock()
		return
	}
	c.closed = true
	close(c.queue)
	c.lifecycle.Unlock()
	<-c.done
}

func (c *client) dispatch() {
	defer close(c.done)
	for msg := range c.queue {
		c.handlerMu.Lock()
		hs := make([]Handler, len(c.handlers[msg.Type]))
		copy(hs, c.handlers[msg.Type])
		c.handlerMu.Unlock()

		for _, h := range hs {
			h(msg)
		}
	}
}
