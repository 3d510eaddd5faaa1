package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/metrics"
	"github.com/sparkleclean/realtime/internal/notify"
	"github.com/sparkleclean/realtime/internal/store"
)

// Subscriber is the long-lived process that listens on every bus topic and
// fans events out to downstream handlers: room creation on job acceptance,
// payment recording, notification creation. Handlers are idempotent because
// the bus delivers at-least-once.
type Subscriber struct {
	store  store.Store
	notify *notify.Service
	bus    bus.Bus
	log    *zerolog.Logger
}

// New builds a subscriber over the given store, notifier and bus.
func New(st store.Store, notifier *notify.Service, b bus.Bus, logger *zerolog.Logger) *Subscriber {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Subscriber{
		store:  st,
		notify: notifier,
		bus:    b,
		log:    logger,
	}
}

// Run consumes bus events until the context is canceled. Handler errors are
// logged, never fatal: one bad event must not stop the stream.
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(ctx, bus.AllTopics()...)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	s.log.Info().Strs("topics", bus.AllTopics()).Msg("subscriber started")

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, event); err != nil {
				s.log.Error().Err(err).
					Str("topic", event.Topic).
					Str("kind", event.Kind).
					Str("event_id", event.ID).
					Msg("event handler failed")
			}
			metrics.BusEventsHandled.WithLabelValues(event.Topic, event.Kind).Inc()
		case <-ctx.Done():
			return nil
		}
	}
}

// Handle dispatches one event to its handler.
func (s *Subscriber) Handle(ctx context.Context, event bus.Event) error {
	switch {
	case event.Topic == bus.TopicJobs && event.Kind == bus.KindJobAccepted:
		var payload bus.JobAccepted
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode job.accepted: %w", err)
		}
		return s.handleJobAccepted(ctx, payload)

	case event.Topic == bus.TopicJobs && event.Kind == bus.KindJobCancelled:
		var payload bus.JobCancelled
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode job.cancelled: %w", err)
		}
		return s.handleJobCancelled(ctx, payload)

	case event.Topic == bus.TopicPayments && event.Kind == bus.KindPaymentCompleted:
		var payload bus.PaymentCompleted
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode payment.completed: %w", err)
		}
		return s.handlePaymentCompleted(ctx, payload)

	default:
		// Chat and notification pushes are gateway concerns.
		s.log.Debug().Str("topic", event.Topic).Str("kind", event.Kind).Msg("no handler for event")
		return nil
	}
}

// handleJobAccepted opens the chat room between client and cleaner, posts an
// opening system message and notifies both parties. CreateRoom is idempotent
// per job, so a redelivered event only repeats the notifications.
func (s *Subscriber) handleJobAccepted(ctx context.Context, payload bus.JobAccepted) error {
	room, err := s.store.CreateRoom(ctx, payload.JobID, payload.ClientID, payload.CleanerID)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	s.log.Info().
		Int64("job_id", payload.JobID).
		Int64("room_id", room.ID).
		Msg("room opened for accepted job")

	msg := &store.Message{
		RoomID:   room.ID,
		SenderID: payload.CleanerID,
		Body:     fmt.Sprintf("Job #%d accepted. This chat connects you with the other party.", payload.JobID),
		Kind:     store.MessageKindSystem,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save system message: %w", err)
	}

	event, err := bus.NewEvent(bus.TopicChat, bus.KindMessageSent, bus.MessageSent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Sender:    "system",
		Body:      msg.Body,
		Kind:      string(msg.Kind),
		SentAt:    msg.CreatedAt.Unix(),
	})
	if err == nil {
		err = s.bus.Publish(ctx, event)
	}
	if err != nil {
		return fmt.Errorf("publish system message: %w", err)
	}

	return s.notify.JobAccepted(ctx, payload)
}

// handleJobCancelled notifies every room participant except the canceller.
func (s *Subscriber) handleJobCancelled(ctx context.Context, payload bus.JobCancelled) error {
	room, err := s.store.GetRoomByJobID(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("find room for job: %w", err)
	}
	participants, err := s.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	for _, userID := range participants {
		if userID == payload.CancelledBy {
			continue
		}
		if err := s.notify.JobCancelled(ctx, userID, payload); err != nil {
			return err
		}
	}
	return nil
}

// handlePaymentCompleted records the settled payment and notifies the cleaner.
func (s *Subscriber) handlePaymentCompleted(ctx context.Context, payload bus.PaymentCompleted) error {
	payment := &store.Payment{
		JobID:       payload.JobID,
		ClientID:    payload.ClientID,
		CleanerID:   payload.CleanerID,
		AmountCents: payload.AmountCents,
		Status:      store.PaymentCompleted,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	return s.notify.PaymentReceived(ctx, payload)
}
