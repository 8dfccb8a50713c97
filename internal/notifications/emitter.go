package notifications

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const defaultMaxPending = 1000

// Emitter hands events to a Dispatcher after a state change has committed.
// Delivery failures never reach the caller: they are logged and queued for
// RetryPending, which a background job drains.
type Emitter struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
	maxTries   uint
	maxPending int

	mu      sync.Mutex
	pending []Event
}

// EmitterOption configures an Emitter
type EmitterOption func(*Emitter)

// WithBackOff sets the backoff policy used by RetryPending
func WithBackOff(newBackOff func() backoff.BackOff, maxTries uint) EmitterOption {
	return func(e *Emitter) {
		e.newBackOff = newBackOff
		e.maxTries = maxTries
	}
}

// WithMaxPending bounds the retry queue; the oldest events are dropped first
func WithMaxPending(n int) EmitterOption {
	return func(e *Emitter) {
		e.maxPending = n
	}
}

// NewEmitter creates an emitter over dispatcher
func NewEmitter(dispatcher Dispatcher, logger *zap.Logger, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		dispatcher: dispatcher,
		logger:     logger,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxTries:   3,
		maxPending: defaultMaxPending,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit dispatches each event once and queues the failures.
func (e *Emitter) Emit(ctx context.Context, events ...Event) {
	for _, event := range events {
		if err := e.dispatcher.Dispatch(ctx, event); err != nil {
			e.logger.Warn("Notification dispatch failed, queued for retry",
				zap.String("event_id", event.ID.String()),
				zap.String("kind", string(event.Kind)),
				zap.String("user_id", event.UserID.String()),
				zap.Error(err))
			e.enqueue(event)
		}
	}
}

func (e *Emitter) enqueue(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, event)
	if overflow := len(e.pending) - e.maxPending; overflow > 0 {
		for _, dropped := range e.pending[:overflow] {
			e.logger.Error("Notification retry queue full, dropping event",
				zap.String("event_id", dropped.ID.String()),
				zap.String("kind", string(dropped.Kind)))
		}
		e.pending = append([]Event(nil), e.pending[overflow:]...)
	}
}

// Pending returns the number of queued events
func (e *Emitter) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// RetryPending re-dispatches queued events with backoff and returns how many
// were delivered. Events that still fail go back on the queue.
func (e *Emitter) RetryPending(ctx context.Context) int {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	delivered := 0
	for _, event := range batch {
		ev := event
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, e.dispatcher.Dispatch(ctx, ev)
		}, backoff.WithBackOff(e.newBackOff()), backoff.WithMaxTries(e.maxTries))
		if err != nil {
			e.logger.Warn("Notification retry failed",
				zap.String("event_id", ev.ID.String()),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
			e.enqueue(ev)
			continue
		}
		delivered++
	}
	return delivered
}
