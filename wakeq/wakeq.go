// File: wakeq/wakeq.go
// Package wakeq implements the multi-producer wake-signal queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Queue is the cross-thread hand-off point of the core: any thread may
// push, a single consumer drains. The fast path is a bounded lock-free
// MPMC segment; when a burst overruns it, pushes spill into a FIFO ring
// guarded by a spinlock, so Push always completes in bounded steps and
// never drops a signal. Ordering across producers is best-effort.

package wakeq

import (
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

// Signal is one pending wakeup: a handle plus the interest that fired.
// Signals for the same handle are coalesced upstream by the registry's
// pending gate, never inside the queue.
type Signal struct {
	Handle api.Handle
	Ready  api.Interest
}

// Queue is a multi-producer queue with a single draining consumer.
type Queue[T any] struct {
	fast     *concurrency.Queue[T]
	mu       concurrency.Spinlock
	overflow *queue.Queue
	size     atomic.Int64
	closed   atomic.Bool
}

// New creates a queue whose lock-free segment holds capacity items.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		fast:     concurrency.NewQueue[T](capacity),
		overflow: queue.New(),
	}
}

// Push enqueues v. It fails with ErrQueueClosed after Close.
func (q *Queue[T]) Push(v T) error {
	if q.closed.Load() {
		return api.ErrQueueClosed
	}
	if q.fast.Enqueue(v) {
		q.size.Add(1)
		return nil
	}
	q.mu.Lock()
	q.overflow.Add(v)
	q.mu.Unlock()
	q.size.Add(1)
	return nil
}

// Pop removes one item. Single consumer only.
func (q *Queue[T]) Pop() (T, bool) {
	if v, ok := q.fast.Dequeue(); ok {
		q.size.Add(-1)
		return v, true
	}
	q.mu.Lock()
	if q.overflow.Length() > 0 {
		v := q.overflow.Remove().(T)
		q.mu.Unlock()
		q.size.Add(-1)
		return v, true
	}
	q.mu.Unlock()
	var zero T
	return zero, false
}

// Drain pops at most the number of items pending at entry and passes each
// to fn; it stops early when fn returns false. Signals pushed while
// draining are left for the next cycle, keeping every drain finite.
// Returns the number of items consumed. Single consumer only.
func (q *Queue[T]) Drain(fn func(T) bool) int {
	budget := q.size.Load()
	n := 0
	for int64(n) < budget {
		v, ok := q.Pop()
		if !ok {
			break
		}
		n++
		if !fn(v) {
			break
		}
	}
	return n
}

// Len returns the approximate number of pending items.
func (q *Queue[T]) Len() int { return int(q.size.Load()) }

// Close marks the queue closed. Idempotent; pending items remain drainable.
func (q *Queue[T]) Close() { q.closed.Store(true) }

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool { return q.closed.Load() }
