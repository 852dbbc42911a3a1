// File: internal/concurrency/spin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Spinlock guards the short critical sections of the core (slot waker
// swaps, wait-list manipulation). Critical sections under a Spinlock must
// be bounded and must not block, poll, or call back into user code.

package concurrency

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a test-and-set lock that yields the processor while
// contended instead of parking the OS thread.
type Spinlock struct {
	state atomic.Uint32
}

// Lock acquires the spinlock.
func (s *Spinlock) Lock() {
	for i := 0; ; i++ {
		if s.state.CompareAndSwap(0, 1) {
			return
		}
		if i%16 == 15 {
			runtime.Gosched()
		}
	}
}

// TryLock acquires the spinlock without spinning; returns false if held.
func (s *Spinlock) TryLock() bool {
	return s.state.CompareAndSwap(0, 1)
}

// Unlock releases the spinlock.
func (s *Spinlock) Unlock() {
	s.state.Store(0)
}
