// File: internal/concurrency/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring is a bounded single-producer/single-consumer circular buffer with
// atomic cursors, padded to keep producer and consumer state on separate
// cache lines.

package concurrency

import "sync/atomic"

// Ring is a lock-free SPSC ring buffer.
type Ring[T any] struct {
	data []T
	mask uint64
	head atomic.Uint64
	_    [cacheLinePad]byte
	tail atomic.Uint64
	_    [cacheLinePad]byte
}

// NewRing allocates a ring of at least the given size, rounded up to a
// power of two.
func NewRing[T any](size int) *Ring[T] {
	if size < 2 {
		size = 2
	}
	n := 1
	for n < size {
		n <<= 1
	}
	return &Ring[T]{
		data: make([]T, n),
		mask: uint64(n - 1),
	}
}

// Enqueue adds item; returns false if full. Single producer only.
func (r *Ring[T]) Enqueue(item T) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail-head >= uint64(len(r.data)) {
		return false
	}
	r.data[tail&r.mask] = item
	r.tail.Store(tail + 1)
	return true
}

// Dequeue removes and returns an item; ok is false if empty. Single
// consumer only.
func (r *Ring[T]) Dequeue() (T, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head >= tail {
		var zero T
		return zero, false
	}
	item := r.data[head&r.mask]
	var zero T
	r.data[head&r.mask] = zero
	r.head.Store(head + 1)
	return item, true
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the fixed buffer capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }
