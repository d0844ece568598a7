package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrExhausted is returned by Take once the queue is completed and drained
var ErrExhausted = errors.New("activity stream exhausted")

// Item is either an activity or an error raised by the producer
type Item struct {
	Activity Activity
	Err      error
}

// Queue is a single-producer/single-consumer handoff queue with one-shot completion
type Queue struct {
	mu        sync.Mutex
	items     []Item
	completed bool
	changed   chan struct{}
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{changed: make(chan struct{})}
}

// Add appends an item. It returns false once the queue is completed.
func (q *Queue) Add(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.completed {
		return false
	}
	q.items = append(q.items, item)
	q.signal()
	return true
}

// Complete marks the queue as finished. Buffered items still drain.
func (q *Queue) Complete() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.completed {
		return
	}
	q.completed = true
	q.signal()
}

// IsCompleted reports whether Complete was called
func (q *Queue) IsCompleted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Len returns the number of buffered items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Take removes the oldest item, blocking until one arrives, the queue completes or
// ctx is done
func (q *Queue) Take(ctx context.Context) (Item, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = Item{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		if q.completed {
			q.mu.Unlock()
			return Item{}, ErrExhausted
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

// signal wakes waiters; callers hold mu
func (q *Queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}
