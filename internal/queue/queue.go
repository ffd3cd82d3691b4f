package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO. A bounded queue drops its oldest items when a
// push would exceed the limit.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// New creates an empty queue. limit <= 0 means unbounded.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		limit: limit,
	}
}

// Push appends items and returns how many old items were dropped to make room.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit <= 0 || len(q.items) <= q.limit {
		return 0
	}
	dropped := len(q.items) - q.limit
	q.items = append(q.items[:0], q.items[dropped:]...)
	return dropped
}

// Drain removes and returns up to max items from the front. max <= 0 drains all.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return out
}

// Requeue puts items back at the front, in order, e.g. after a failed write.
// Over the limit, the newest items are dropped.
func (q *Queue[T]) Requeue(items []T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
	if q.limit <= 0 || len(q.items) <= q.limit {
		return 0
	}
	dropped := len(q.items) - q.limit
	q.items = q.items[:q.limit]
	return dropped
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
