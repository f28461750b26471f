// Package exec implements the executor and state-update debouncer (§4.6):
// a bounded queue of handler-bound callables drained by a pool of spinner
// threads, and a separate timer-driven debouncer that coalesces
// request_update(urgency) calls into publish calls.
package exec

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned by Queue.TryPush when the queue is at capacity.
var ErrQueueFull = errors.New("exec: queue full")

// ErrClosed is returned by Push/TryPush once the queue has been closed.
var ErrClosed = errors.New("exec: queue closed")

// Queue is a bounded MPMC queue of zero-argument callables. It is the
// systems-language realization of §9's "blocking queue" design note:
// Pop takes a timeout so spinner threads can notice shutdown without a
// separate signalling channel.
type Queue struct {
	ch     chan func()
	closed chan struct{}
}

// NewQueue returns a Queue with the given bounded capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan func(), capacity), closed: make(chan struct{})}
}

// Push enqueues fn, blocking until there is room or ctx is done.
func (q *Queue) Push(ctx context.Context, fn func()) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- fn:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues fn without blocking, returning ErrQueueFull if there is
// no room.
func (q *Queue) TryPush(fn func()) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// PopWait blocks up to timeout for a callable. It returns (nil, false) on
// timeout, letting the spinner loop re-check its shutdown flag.
func (q *Queue) PopWait(timeout time.Duration) (func(), bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case fn, ok := <-q.ch:
		if !ok {
			return nil, false
		}
		return fn, true
	case <-t.C:
		return nil, false
	}
}

// Len reports the number of callables currently queued, used by the
// Metrics gauge.
func (q *Queue) Len() int { return len(q.ch) }

// Close closes the queue. Pending Push calls fail with ErrClosed; already
// queued callables remain poppable until drained.
func (q *Queue) Close() {
	select {
	case <-q.closed:
		return
	default:
		close(q.closed)
	}
}
