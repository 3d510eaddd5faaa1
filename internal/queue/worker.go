package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/metrics"
)

// DeliverFunc handles one notification delivery attempt. Returning an error
// makes asynq retry the task.
type DeliverFunc func(ctx context.Context, notificationID int64) error

// Worker processes notification delivery tasks from the Redis-backed queues.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds a worker consuming all priority queues, weighted so
// critical notifications go out first.
func NewWorker(redisURL string, concurrency int, deliver DeliverFunc, logger *zerolog.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("task", task.Type()).Msg("delivery task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNotificationDeliver, func(ctx context.Context, task *asynq.Task) error {
		var payload DeliverPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := deliver(ctx, payload.NotificationID); err != nil {
			return err
		}
		metrics.DeliveryTasksProcessed.Inc()
		return nil
	})

	return &Worker{server: server, mux: mux}, nil
}

// Run starts the worker and blocks until the context is canceled, then
// shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
