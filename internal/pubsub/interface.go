package pubsub

// EventType tags an internal bus message.
type EventType string

const (
	TypeLobbyData    EventType = "lobby-data"
	TypeMatchData    EventType = "match-data"
	TypeGuessData    EventType = "guess-data"
	TypeWSEvent      EventType = "ws-event"
	TypeNavigation   EventType = "navigation"
	TypePageSignal   EventType = "page-signal"
	TypeNickResolved EventType = "nick-resolved"
	TypeTimer        EventType = "timer"
)

// Message is one bus envelope: a type tag plus the msgpack-encoded payload.
type Message struct {
	Type EventType
	Data []byte
}

// Handler consumes one delivered message.
type Handler func(msg Message)

// PubSubClient is the internal event bus. Delivery is serialized: handlers
// run one at a time, in publish order, on a single dispatcher goroutine.
// The reconciler's merge policy depends on that ordering model.
type PubSubClient interface {
	Publish(t EventType, data any) error
	Subscribe(t EventType, h Handler)
	ProcessMessage(data []byte, returnValue any) error
	Close()
}
