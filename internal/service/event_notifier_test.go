package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

type recordingPublisher struct {
	mu       sync.Mutex
	events   []models.OutingEvent
	failures int
}

func (p *recordingPublisher) Publish(ctx context.Context, event models.OutingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("redis unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// recordingNotifier captures events synchronously for service tests.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.OutingEvent
}

func (n *recordingNotifier) Notify(event models.OutingEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []models.OutingEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.OutingEventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

func TestEventNotifierDeliversWithRetry(t *testing.T) {
	publisher := &recordingPublisher{failures: 1}
	notifier := NewEventNotifier(publisher, EventNotifierConfig{Workers: 1, BufferSize: 4, MaxRetries: 2, RetryDelay: 5 * time.Millisecond}, nil)
	notifier.Start(context.Background())
	defer notifier.Stop()

	notifier.Notify(models.OutingEvent{Type: models.EventGateScanned, OutingID: "out-1"})
	require.Eventually(t, func() bool { return publisher.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, publisher.events[0].OccurredAt.IsZero())
}

func TestEventNotifierDropsWhenNotStarted(t *testing.T) {
	publisher := &recordingPublisher{}
	notifier := NewEventNotifier(publisher, EventNotifierConfig{}, nil)
	notifier.Notify(models.OutingEvent{Type: models.EventPassIssued})
	assert.Equal(t, uint64(1), notifier.Stats().Dropped)
	assert.Zero(t, publisher.count())
}
