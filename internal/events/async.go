package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned by Async.Publish when the buffer has no room.
var ErrQueueFull = errors.New("vote event queue full")

// ErrClosed is returned by Async.Publish after Close.
var ErrClosed = errors.New("vote event publisher closed")

// AsyncOptions configures NewAsync. Buffer is the number of events held
// while the worker is busy and Timeout bounds each inner publish. Dropped,
// when set, counts events rejected by a full queue.
type AsyncOptions struct {
	Buffer  int
	Timeout time.Duration
	Dropped prometheus.Counter
	Log     logrus.FieldLogger
}

// Async moves publishing off the caller's goroutine. Publish only enqueues;
// a single worker drains the queue in order, so per-question ordering from
// the inner publisher is preserved.
type Async struct {
	inner   Publisher
	timeout time.Duration
	dropped prometheus.Counter
	log     logrus.FieldLogger

	mu     sync.RWMutex
	queue  chan VoteEvent
	closed bool
	done   chan struct{}
}

func NewAsync(inner Publisher, opts AsyncOptions) *Async {
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	a := &Async{
		inner:   inner,
		timeout: opts.Timeout,
		dropped: opts.Dropped,
		log:     opts.Log,
		queue:   make(chan VoteEvent, opts.Buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues ev without waiting on the broker. ctx is not used past
// the call.
func (a *Async) Publish(_ context.Context, ev VoteEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- ev:
		return nil
	default:
		if a.dropped != nil {
			a.dropped.Inc()
		}
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Publish(ctx, ev); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"question_id": ev.QuestionID,
				"target_id":   ev.TargetID,
			}).Warn("failed to publish vote event")
		}
		cancel()
	}
}

// Close stops accepting events, waits for the queue to drain and closes the
// inner publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.inner.Close()
}
