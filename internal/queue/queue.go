package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskNotificationDeliver pushes a persisted notification to its recipient.
const TaskNotificationDeliver = "notification:deliver"

// Queue names by notification priority. Weights are set on the worker.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DeliverPayload is the task payload for TaskNotificationDeliver.
type DeliverPayload struct {
	NotificationID int64 `json:"notification_id"`
}

// Enqueuer schedules notification delivery tasks.
type Enqueuer interface {
	// EnqueueDeliver schedules delivery of the notification. The priority
	// selects the queue; retries give at-least-once processing.
	EnqueueDeliver(ctx context.Context, notificationID int64, priority string) error

	// Close releases the underlying connection.
	Close() error
}

// AsynqEnqueuer implements Enqueuer on an asynq client backed by Redis.
type AsynqEnqueuer struct {
	client *asynq.Client
}

// NewEnqueuer connects an asynq client to the broker at redisURL.
func NewEnqueuer(redisURL string) (*AsynqEnqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &AsynqEnqueuer{client: asynq.NewClient(opt)}, nil
}

var _ Enqueuer = (*AsynqEnqueuer)(nil)

// EnqueueDeliver schedules delivery of the notification.
func (e *AsynqEnqueuer) EnqueueDeliver(ctx context.Context, notificationID int64, priority string) error {
	payload, err := json.Marshal(DeliverPayload{NotificationID: notificationID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(TaskNotificationDeliver, payload)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueForPriority(priority)),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return fmt.Errorf("enqueue deliver: %w", err)
	}
	return nil
}

// Close releases the client connection.
func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}

// QueueForPriority maps a notification priority to a queue name.
func QueueForPriority(priority string) string {
	switch priority {
	case "critical":
		return QueueCritical
	case "low":
		return QueueLow
	default:
		return QueueDefault
	}
}
