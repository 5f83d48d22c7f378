package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "event"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
	assert.False(t, q.TryEnqueue(Job{ID: "2"}))
	assert.Equal(t, uint64(1), q.Stats().Dropped)
}

func TestQueueTryEnqueueDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.True(t, q.TryEnqueue(Job{ID: "1"}))
	require.Eventually(t, func() bool { return q.Stats().Pending == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, q.TryEnqueue(Job{ID: "2"}))
	assert.False(t, q.TryEnqueue(Job{ID: "3"}))
	assert.Equal(t, uint64(1), q.Stats().Dropped)
}

func TestQueueDrainsOnStop(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8, DrainOnStop: true})

	// Jobs sit in the buffer because no worker has started yet.
	q.mu.Lock()
	q.started = true
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.mu.Unlock()
	for i := 0; i < 3; i++ {
		require.True(t, q.TryEnqueue(Job{ID: "x"}))
	}
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
	assert.Equal(t, uint64(3), q.Stats().Processed)
}
