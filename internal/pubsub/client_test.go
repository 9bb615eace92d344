package pubsub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ID    string
	Count int
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	bus.Subscribe(TypeWSEvent, func(msg Message) {
		var p testPayload
		require.NoError(t, bus.ProcessMessage(msg.Data, &p))
		mu.Lock()
		got = append(got, p.Count)
		if len(got) == 10 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(TypeWSEvent, testPayload{ID: "g1", Count: i}))
	}
	<-done
	bus.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got, "delivery order must match publish order")
}

func TestPublishOnlyReachesMatchingType(t *testing.T) {
	bus := New()
	defer bus.Close()

	delivered := make(chan EventType, 2)
	bus.Subscribe(TypeLobbyData, func(msg Message) { delivered <- msg.Type })
	bus.Subscribe(TypeMatchData, func(msg Message) { delivered <- msg.Type })

	require.NoError(t, bus.Publish(TypeMatchData, testPayload{ID: "g1"}))
	assert.Equal(t, TypeMatchData, <-delivered)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	bus := New()
	bus.Close()

	err := bus.Publish(TypeWSEvent, testPayload{ID: "g1"})
	assert.NoError(t, err, "publishing after close should be a silent no-op")
}

func TestCloseTwice(t *testing.T) {
	bus := New()
	bus.Close()
	assert.NotPanics(t, func() { bus.Close() })
}
