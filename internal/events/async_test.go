package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/logging"
)

// blockingPublisher holds every Publish until release is closed.
type blockingPublisher struct {
	release chan struct{}

	mu     sync.Mutex
	got    []VoteEvent
	closed bool
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{release: make(chan struct{})}
}

func (p *blockingPublisher) Publish(ctx context.Context, ev VoteEvent) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, ev)
	return nil
}

func (p *blockingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *blockingPublisher) delivered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.got))
	for _, ev := range p.got {
		ids = append(ids, ev.TargetID)
	}
	return ids
}

func TestAsyncPublishDoesNotWaitForBroker(t *testing.T) {
	inner := newBlockingPublisher()
	a := NewAsync(inner, AsyncOptions{Buffer: 4, Timeout: time.Minute, Log: logging.Discard()})

	start := time.Now()
	require.NoError(t, a.Publish(context.Background(), VoteEvent{TargetID: "q1"}))
	require.NoError(t, a.Publish(context.Background(), VoteEvent{TargetID: "q2"}))
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, inner.delivered())

	close(inner.release)
	require.NoError(t, a.Close())
	assert.Equal(t, []string{"q1", "q2"}, inner.delivered())
	assert.True(t, inner.closed)
}

func TestAsyncDropsWhenFull(t *testing.T) {
	inner := newBlockingPublisher()
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped_total"})
	a := NewAsync(inner, AsyncOptions{Buffer: 1, Timeout: time.Minute, Dropped: dropped, Log: logging.Discard()})

	// The worker takes one event and blocks on it; the buffer holds one more.
	require.NoError(t, a.Publish(context.Background(), VoteEvent{TargetID: "q1"}))
	require.Eventually(t, func() bool { return len(a.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, a.Publish(context.Background(), VoteEvent{TargetID: "q2"}))

	err := a.Publish(context.Background(), VoteEvent{TargetID: "q3"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(dropped))

	close(inner.release)
	require.NoError(t, a.Close())
	assert.Equal(t, []string{"q1", "q2"}, inner.delivered())
}

func TestAsyncRejectsAfterClose(t *testing.T) {
	inner := newBlockingPublisher()
	close(inner.release)
	a := NewAsync(inner, AsyncOptions{Log: logging.Discard()})

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Publish(context.Background(), VoteEvent{}), ErrClosed)
}

func TestAsyncBoundsEachPublish(t *testing.T) {
	inner := newBlockingPublisher()
	a := NewAsync(inner, AsyncOptions{Timeout: 10 * time.Millisecond, Log: logging.Discard()})

	require.NoError(t, a.Publish(context.Background(), VoteEvent{TargetID: "q1"}))
	// Close returns once the timed-out publish gives up.
	require.NoError(t, a.Close())
	assert.Empty(t, inner.delivered())
}
