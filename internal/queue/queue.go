// Package queue provides an unbounded single-producer hand-off between workers.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by Pop once the queue is closed and fully drained.
	ErrClosed = errors.New("queue closed")
	// ErrTimeout is returned by Pop when no item arrived within the wait.
	ErrTimeout = errors.New("queue receive timeout")
)

// Queue is an unbounded FIFO. Push never blocks, so a real-time producer
// (the capture callback) is never stalled by a slow consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends item. It reports false when the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
	return true
}

// Pop waits up to timeout for the next item. A non-positive timeout waits
// until an item arrives, the queue closes, or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		item, ok, closed := q.take()
		if ok {
			return item, nil
		}
		var zero T
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer:
			return zero, ErrTimeout
		case <-q.ready:
		}
	}
}

// TryPop returns the next item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	item, ok, _ := q.take()
	return item, ok
}

// Close stops accepting items. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) take() (T, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false, q.closed
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 || q.closed {
		// keep waking the consumer while there is something to observe
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return item, true, false
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
