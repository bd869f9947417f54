// Package queue provides the unbounded FIFO used for both directions of a
// driver's channel pair.
//
// A Queue never blocks writers. Readers block until an item is available, the
// context is cancelled, or the queue is closed. Items queued before Close are
// still handed out; once the queue is empty and closed, reads fail with
// ErrClosed.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when reading from a drained, closed queue or writing
// to a closed one.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded, goroutine-safe FIFO.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// ready holds a token while items may be available.
	ready chan struct{}
	// done is closed by Close.
	done chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v. It never blocks.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.notify()
	return nil
}

// Pop removes and returns the front item, waiting for one if necessary.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	return q.wait(ctx, true)
}

// Peek returns the front item without removing it, waiting for one if necessary.
// Combined with Shift it lets a reader commit an item only after handing it on.
func (q *Queue[T]) Peek(ctx context.Context) (T, error) {
	return q.wait(ctx, false)
}

// TryPop removes the front item if there is one.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.shift(), true
}

// Shift drops the front item. It is a no-op on an empty queue.
func (q *Queue[T]) Shift() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		q.shift()
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether the queue holds no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Snapshot returns a copy of the queued items in FIFO order.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Close rejects further writes and wakes blocked readers.
// Calling Close more than once is safe.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) wait(ctx context.Context, remove bool) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			var v T
			if remove {
				v = q.shift()
			} else {
				v = q.items[0]
				q.notify()
			}
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		case <-q.done:
		}
	}
}

// shift must be called with mu held and a non-empty queue.
func (q *Queue[T]) shift() T {
	var zero T
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.notify()
	}
	return v
}

// notify must be called with mu held.
func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
