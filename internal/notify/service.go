package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/queue"
	"github.com/sparkleclean/realtime/internal/store"
)

// Service creates notifications and pushes them to recipients. Creation
// persists the row and schedules a delivery task; delivery publishes to the
// notifications topic so gateways can push to live connections, then stamps
// delivered_at. With a nil enqueuer delivery happens inline, which keeps
// single-process deployments and tests free of a task queue.
type Service struct {
	store    store.NotificationStore
	enqueuer queue.Enqueuer
	bus      bus.Bus
	log      *zerolog.Logger
}

// NewService builds a notification service.
func NewService(st store.NotificationStore, enq queue.Enqueuer, b bus.Bus, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:    st,
		enqueuer: enq,
		bus:      b,
		log:      logger,
	}
}

// Create persists a notification and schedules its delivery.
func (s *Service) Create(ctx context.Context, recipientID int64, template, body string, priority store.NotificationPriority) (*store.Notification, error) {
	n := &store.Notification{
		RecipientID: recipientID,
		Template:    template,
		Body:        body,
		Priority:    priority,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueDeliver(ctx, n.ID, string(n.Priority)); err != nil {
			// The row exists; delivery will not happen until a retry path
			// picks it up. Surface the error to the caller.
			return n, fmt.Errorf("enqueue delivery: %w", err)
		}
		return n, nil
	}

	if err := s.Deliver(ctx, n.ID); err != nil {
		return n, err
	}
	return n, nil
}

// JobAccepted raises the pair of notifications for an accepted job.
func (s *Service) JobAccepted(ctx context.Context, event bus.JobAccepted) error {
	if _, err := s.Create(ctx, event.ClientID, TemplateJobAcceptedClient,
		jobAcceptedClientBody(event.JobID), store.PriorityNormal); err != nil {
		return err
	}
	if _, err := s.Create(ctx, event.CleanerID, TemplateJobAcceptedCleaner,
		jobAcceptedCleanerBody(event.JobID), store.PriorityNormal); err != nil {
		return err
	}
	return nil
}

// JobCancelled notifies the other party about a cancellation.
func (s *Service) JobCancelled(ctx context.Context, recipientID int64, event bus.JobCancelled) error {
	_, err := s.Create(ctx, recipientID, TemplateJobCancelled,
		jobCancelledBody(event.JobID), store.PriorityCritical)
	return err
}

// PaymentReceived notifies a cleaner about a settled payment.
func (s *Service) PaymentReceived(ctx context.Context, event bus.PaymentCompleted) error {
	_, err := s.Create(ctx, event.CleanerID, TemplatePaymentReceived,
		paymentReceivedBody(event.JobID, event.AmountCents), store.PriorityNormal)
	return err
}

// Deliver publishes the notification to the notifications topic and stamps
// delivered_at. Safe to call more than once for the same notification; the
// recipient may see a duplicate push, matching the bus's at-least-once
// contract.
func (s *Service) Deliver(ctx context.Context, notificationID int64) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}

	event, err := bus.NewEvent(bus.TopicNotifications, bus.KindNotificationPush, bus.NotificationPush{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Template:       n.Template,
		Body:           n.Body,
		Priority:       string(n.Priority),
	})
	if err != nil {
		return fmt.Errorf("build push event: %w", err)
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish push event: %w", err)
	}

	if err := s.store.MarkNotificationDelivered(ctx, n.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Int64("notification_id", n.ID).Msg("failed to stamp delivery")
	}
	return nil
}
