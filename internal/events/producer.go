package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Producer publishes domain events to a broker.
type Producer interface {
	SendMessage(ctx context.Context, value interface{}) error
	Close() error
}

// Keyed values choose their own partition key. The NATS producer also uses
// it as the message id for duplicate detection.
type Keyed interface {
	MessageKey() string
}

// Typed values name the event they carry, e.g. "school.created".
type Typed interface {
	EventType() string
}

// HeaderEventType carries Typed.EventType on the wire.
const HeaderEventType = "Event-Type"

// Message is an encoded event ready to hand to a broker client.
type Message struct {
	Key     string
	Type    string
	Payload []byte
}

// Encode marshals value to JSON and lifts its key and type, when present.
func Encode(value interface{}) (Message, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return Message{}, fmt.Errorf("encode event: %w", err)
	}

	msg := Message{Payload: payload}
	if keyed, ok := value.(Keyed); ok {
		msg.Key = keyed.MessageKey()
	}
	if typed, ok := value.(Typed); ok {
		msg.Type = typed.EventType()
	}
	return msg, nil
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) SendMessage(context.Context, interface{}) error { return nil }
func (Noop) Close() error                                   { return nil }
