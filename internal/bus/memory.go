package bus

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus is an in-process Bus with the same delivery semantics as the
// Redis implementation: events reach subscribers active at publish time,
// nothing is replayed. It backs unit tests and single-node deployments that
// run without a broker.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{} // topic -> subscribers
	closed bool
}

// NewMemory constructs an empty in-process bus.
func NewMemory() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

var _ Bus = (*MemoryBus)(nil)

// Publish fans the event out to current subscribers of its topic. Slow
// subscribers with a full buffer are skipped rather than blocking the
// publisher.
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New("bus closed")
	}
	for sub := range b.subs[event.Topic] {
		select {
		case sub.events <- event:
		default:
		}
	}
	return nil
}

// Subscribe attaches to the given topics.
func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("bus closed")
	}

	sub := &memorySubscription{
		bus:    b,
		topics: topics,
		events: make(chan Event, 64),
	}
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*memorySubscription]struct{})
		}
		b.subs[topic][sub] = struct{}{}
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			_ = sub.Close()
		}()
	}
	return sub, nil
}

// Close detaches all subscribers and rejects further publishes.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	subs := make([]*memorySubscription, 0)
	for _, topicSubs := range b.subs {
		for sub := range topicSubs {
			subs = append(subs, sub)
		}
	}
	b.subs = make(map[string]map[*memorySubscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

type memorySubscription struct {
	bus    *MemoryBus
	topics []string
	events chan Event
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		for _, topic := range s.topics {
			delete(s.bus.subs[topic], s)
			if len(s.bus.subs[topic]) == 0 {
				delete(s.bus.subs, topic)
			}
		}
		s.bus.mu.Unlock()
		close(s.events)
	})
	return nil
}
