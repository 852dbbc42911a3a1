// File: locks/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package locks provides synchronization primitives that suspend the
// calling task instead of blocking its OS thread. Every primitive hands
// out futures: a task that cannot make progress parks its waker on a
// FIFO wait list and yields the worker to other tasks.
//
// All primitives honor cooperative cancellation. A cancelled waiter is
// unwound from the wait list, and any resource that was already granted
// to it in flight is passed on rather than leaked.
package locks
