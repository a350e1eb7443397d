package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Patterns published on the shared fanout exchange.
const (
	PatternNewItems           = "order.new_items"
	PatternItemsAccepted      = "order.items_accepted"
	PatternItemsStatusChanged = "order.items_status_changed"
	PatternOrderStatusChanged = "order.status_changed"
	PatternPaymentCompleted   = "payment.completed"
)

// Envelope is the wire body of every message.
type Envelope struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
}

// Message is an outgoing event. ID becomes the broker message id and is the
// idempotency key consumers deduplicate on.
type Message struct {
	ID      string
	Pattern string
	Data    interface{}
}

func NewMessage(pattern string, data interface{}) Message {
	return Message{
		ID:      uuid.NewString(),
		Pattern: pattern,
		Data:    data,
	}
}

// Publisher is fire-and-forget: no reply, at-least-once delivery.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Delivery is an incoming event already unwrapped from its envelope.
type Delivery struct {
	MessageID   string
	Pattern     string
	Data        json.RawMessage
	Redelivered bool
}

func (d Delivery) Decode(v interface{}) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", d.Pattern, err)
	}
	return nil
}

// HandlerFunc processes one delivery. A returned error sends the message
// through the retry path; nil acknowledges it.
type HandlerFunc func(ctx context.Context, d Delivery) error
