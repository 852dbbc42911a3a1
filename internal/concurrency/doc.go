// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package concurrency holds the lock-free building blocks shared by the
// registry, wake queue and executor: a bounded Vyukov-style MPMC queue, an
// SPSC ring buffer, and a spinlock for short critical sections.
package concurrency
