package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus implements Bus over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	log    *zerolog.Logger
}

// NewRedis connects to the broker at the given URL, which must be in the
// redis://[:password@]host:port/db form understood by redis.ParseURL.
// keepAlive configures TCP keepalive on the dialer; platform-specific socket
// options are deliberately not exposed.
func NewRedis(url string, keepAlive time.Duration, logger *zerolog.Logger) (*RedisBus, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: keepAlive,
		}
		return d.DialContext(ctx, network, addr)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBus{client: client, log: logger}, nil
}

var _ Bus = (*RedisBus)(nil)

// Publish sends the event to its topic channel.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, event.Topic, data).Err(); err != nil {
		return fmt.Errorf("publish %s/%s: %w", event.Topic, event.Kind, err)
	}
	return nil
}

// Subscribe attaches to the given topic channels.
func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, topics...)

	// Force the SUBSCRIBE round trip so a broken broker surfaces here
	// instead of on the first receive.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", topics, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan Event, 64),
	}
	go sub.pump(ctx, b.log)
	return sub, nil
}

// Close releases the broker connection.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Event
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

func (s *redisSubscription) pump(ctx context.Context, logger *zerolog.Logger) {
	defer close(s.events)

	ch := s.ps.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				if logger != nil {
					logger.Warn().Err(err).Str("channel", msg.Channel).Msg("drop undecodable bus event")
				}
				continue
			}
			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
