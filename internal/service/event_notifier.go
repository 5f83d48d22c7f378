package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/pkg/jobs"
)

// EventPublisher hands an event to the downstream fan-out transport.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OutingEvent) error
}

// Notifier receives domain events. Implementations must not block callers.
type Notifier interface {
	Notify(event models.OutingEvent)
}

// EventNotifierConfig sizes the delivery queue.
type EventNotifierConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// EventNotifier delivers outing events asynchronously with retry. A full
// queue drops the event; state changes are already durable.
type EventNotifier struct {
	queue     *jobs.Queue
	publisher EventPublisher
	logger    *zap.Logger
}

// NewEventNotifier constructs the notifier around publisher.
func NewEventNotifier(publisher EventPublisher, cfg EventNotifierConfig, logger *zap.Logger) *EventNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &EventNotifier{publisher: publisher, logger: logger}
	n.queue = jobs.NewQueue("outing-events", n.deliver, jobs.QueueConfig{
		Workers:     cfg.Workers,
		BufferSize:  cfg.BufferSize,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		DrainOnStop: true,
		Logger:      logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *EventNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop flushes buffered events and stops the workers.
func (n *EventNotifier) Stop() {
	n.queue.Stop()
}

// Notify enqueues the event for delivery.
func (n *EventNotifier) Notify(event models.OutingEvent) {
	if n == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{ID: uuid.NewString(), Type: string(event.Type), Payload: event}
	if !n.queue.TryEnqueue(job) {
		n.logger.Warn("outing event dropped", zap.String("event_type", string(event.Type)), zap.String("outing_id", event.OutingID))
	}
}

// Stats exposes queue counters.
func (n *EventNotifier) Stats() jobs.Stats {
	return n.queue.Stats()
}

func (n *EventNotifier) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.OutingEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if n.publisher == nil {
		return nil
	}
	return n.publisher.Publish(ctx, event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(models.OutingEvent) {}
