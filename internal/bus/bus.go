package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics carried by the event bus.
const (
	TopicJobs          = "jobs"
	TopicChat          = "chat"
	TopicNotifications = "notifications"
	TopicPayments      = "payments"
)

// AllTopics lists every topic the subscriber process listens on.
func AllTopics() []string {
	return []string{TopicJobs, TopicChat, TopicNotifications, TopicPayments}
}

// Event is the envelope published to a topic. Delivery is at-least-once to
// all subscribers active at publish time; late subscribers never see it.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent builds an envelope for the given topic and kind, marshaling the
// payload. The envelope ID is a fresh UUID.
func NewEvent(topic, kind string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}, nil
}

// Bus is a publish/subscribe channel keyed by topic.
type Bus interface {
	// Publish sends the event to all active subscribers of its topic.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers for the given topics and returns a subscription
	// that stays open until closed or the context is canceled.
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)

	// Close releases the underlying broker connection.
	Close() error
}

// Subscription is a live attachment to one or more topics.
type Subscription interface {
	// Events yields incoming events. The channel is closed when the
	// subscription ends.
	Events() <-chan Event

	// Close detaches from the topics.
	Close() error
}
