package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/infrastructure/resilience"
)

const (
	SubjectIngest   = "jobs.ingest"
	SubjectModerate = "jobs.moderate"

	ingestGroup   = "ingest-workers"
	moderateGroup = "moderation-workers"
)

// taskEnvelope is the wire form of one work item. Core NATS has no broker-side
// redelivery, so the attempt counter rides with the message and the consumer
// republishes on retryable failure. EnqueuedAt is the first publish time and
// survives redelivery, so observed lag includes retry backoff.
type taskEnvelope struct {
	ID         string    `json:"id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at,omitempty"`
}

type TaskQueueOptions struct {
	// MaxAttempts bounds deliveries per task, first included.
	MaxAttempts int
	// RetryDelay is the base redelivery delay; attempt n waits n*RetryDelay.
	RetryDelay time.Duration
	Executor   *resilience.Executor
}

type TaskQueue struct {
	conn        *nats.Conn
	executor    *resilience.Executor
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	lagObserver func(subject string, lag time.Duration)
}

// OnQueueLag registers an observer called with the age of every dequeued
// task. Set it before the first Consume call; it is read without locking.
func (q *TaskQueue) OnQueueLag(fn func(subject string, lag time.Duration)) {
	q.lagObserver = fn
}

func NewTaskQueue(conn *nats.Conn, options TaskQueueOptions, logger *slog.Logger) *TaskQueue {
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := options.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	retryDelay := options.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}
	return &TaskQueue{
		conn:        conn,
		executor:    options.Executor,
		logger:      logger,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

func (q *TaskQueue) EnqueueIngestion(ctx context.Context, documentID string) error {
	return q.enqueue(ctx, SubjectIngest, documentID)
}

func (q *TaskQueue) EnqueueModeration(ctx context.Context, diagramID string) error {
	return q.enqueue(ctx, SubjectModerate, diagramID)
}

func (q *TaskQueue) enqueue(ctx context.Context, subject, id string) error {
	payload, err := json.Marshal(taskEnvelope{ID: id, Attempt: 1, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal task envelope: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats_publish", call, classifyQueueError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// TaskHandler processes one task. A temporary-kind error requests redelivery;
// any other error, and nil, settle the task.
type TaskHandler func(ctx context.Context, id string) error

// ConsumeIngestion joins the ingestion queue group and blocks until ctx is
// cancelled, then drains the subscription.
func (q *TaskQueue) ConsumeIngestion(ctx context.Context, handler TaskHandler) error {
	return q.consume(ctx, SubjectIngest, ingestGroup, handler)
}

func (q *TaskQueue) ConsumeModeration(ctx context.Context, handler TaskHandler) error {
	return q.consume(ctx, SubjectModerate, moderateGroup, handler)
}

func (q *TaskQueue) consume(ctx context.Context, subject, group string, handler TaskHandler) error {
	sub, err := q.conn.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		envelope, ok := decodeEnvelope(msg.Data)
		if !ok {
			q.logger.Error("task_envelope_malformed",
				slog.String("subject", subject),
				slog.String("payload", string(msg.Data)),
			)
			return
		}
		if q.lagObserver != nil && !envelope.EnqueuedAt.IsZero() {
			q.lagObserver(subject, time.Since(envelope.EnqueuedAt))
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		err := handler(handlerCtx, envelope.ID)
		cancel()
		if err == nil {
			return
		}

		if shouldRedeliver(err, envelope.Attempt, q.maxAttempts) {
			q.redeliver(ctx, subject, envelope, err)
			return
		}
		q.logger.Error("task_dropped",
			slog.String("subject", subject),
			slog.String("id", envelope.ID),
			slog.Int("attempt", envelope.Attempt),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *TaskQueue) redeliver(ctx context.Context, subject string, envelope taskEnvelope, cause error) {
	delay := q.retryDelay * time.Duration(envelope.Attempt)
	q.logger.Warn("task_redeliver",
		slog.String("subject", subject),
		slog.String("id", envelope.ID),
		slog.Int("attempt", envelope.Attempt),
		slog.Int("max_attempts", q.maxAttempts),
		slog.Duration("delay", delay),
		slog.String("error", cause.Error()),
	)

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	payload, err := json.Marshal(taskEnvelope{ID: envelope.ID, Attempt: envelope.Attempt + 1, EnqueuedAt: envelope.EnqueuedAt})
	if err != nil {
		q.logger.Error("task_redeliver_marshal", slog.String("id", envelope.ID), slog.String("error", err.Error()))
		return
	}
	if err := q.conn.Publish(subject, payload); err != nil {
		q.logger.Error("task_redeliver_failed",
			slog.String("subject", subject),
			slog.String("id", envelope.ID),
			slog.String("error", err.Error()),
		)
	}
}

func decodeEnvelope(data []byte) (taskEnvelope, bool) {
	var envelope taskEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.ID == "" {
		return taskEnvelope{}, false
	}
	if envelope.Attempt <= 0 {
		envelope.Attempt = 1
	}
	return envelope, true
}

func shouldRedeliver(err error, attempt, maxAttempts int) bool {
	return domain.IsKind(err, domain.ErrTemporary) && attempt < maxAttempts
}
