package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/config"
	"github.com/sparkleclean/realtime/internal/notify"
	"github.com/sparkleclean/realtime/internal/queue"
	"github.com/sparkleclean/realtime/internal/store"
	"github.com/sparkleclean/realtime/internal/store/sqlite"
	"github.com/sparkleclean/realtime/internal/subscriber"
)

// SubscriberApp wires the event subscriber process: the bus dispatcher plus
// the notification delivery worker.
type SubscriberApp struct {
	subscriber *subscriber.Subscriber
	worker     *queue.Worker
	enqueuer   queue.Enqueuer
	store      store.Store
	bus        bus.Bus
	log        *zerolog.Logger
}

// NewSubscriber constructs the subscriber application.
func NewSubscriber(cfg *config.Config, logger *zerolog.Logger) (*SubscriberApp, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	redisURL := cfg.ResolveRedisURL()
	b, err := bus.NewRedis(redisURL, cfg.RedisKeepAlive, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init bus: %w", err)
	}

	enqueuer, err := queue.NewEnqueuer(redisURL)
	if err != nil {
		_ = b.Close()
		_ = st.Close()
		return nil, fmt.Errorf("init queue: %w", err)
	}

	notifier := notify.NewService(st, enqueuer, b, logger)

	worker, err := queue.NewWorker(redisURL, cfg.WorkerConcurrency, notifier.Deliver, logger)
	if err != nil {
		_ = enqueuer.Close()
		_ = b.Close()
		_ = st.Close()
		return nil, fmt.Errorf("init worker: %w", err)
	}

	return &SubscriberApp{
		subscriber: subscriber.New(st, notifier, b, logger),
		worker:     worker,
		enqueuer:   enqueuer,
		store:      st,
		bus:        b,
		log:        logger,
	}, nil
}

// Run starts the dispatcher and the delivery worker and blocks until the
// context is canceled or either exits with an error.
func (s *SubscriberApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.subscriber.Run(ctx)
	}()
	go func() {
		errCh <- s.worker.Run(ctx)
	}()

	err := <-errCh
	cancel()
	<-errCh

	s.cleanup()
	return err
}

func (s *SubscriberApp) cleanup() {
	if err := s.enqueuer.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close queue client")
	}
	if err := s.bus.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close bus")
	}
	if err := s.store.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close store")
	}
}
