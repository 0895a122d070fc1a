package syncloop

import (
	"context"
	"sync"
)

// Dispatcher hands work to the goroutine that owns rendering.
type Dispatcher interface {
	Dispatch(fn func())
}

// Inline runs dispatched functions on the caller's goroutine.
type Inline struct{}

// Dispatch runs fn immediately.
func (Inline) Dispatch(fn func()) { fn() }

// Queue serializes dispatched functions onto the single goroutine running Run.
type Queue struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

// NewQueue creates a queue holding up to size pending functions.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:   make(chan func(), size),
		done: make(chan struct{}),
	}
}

// Dispatch enqueues fn. It blocks while the queue is full and drops fn once Run has returned.
func (q *Queue) Dispatch(fn func()) {
	select {
	case <-q.done:
		return
	default:
	}
	select {
	case q.ch <- fn:
	case <-q.done:
	}
}

// Run executes queued functions in order until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	defer q.once.Do(func() { close(q.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-q.ch:
			fn()
		}
	}
}
