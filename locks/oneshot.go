// File: locks/oneshot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package locks

import (
	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/executor"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

// Oneshot carries a single value from a producer to one consuming task.
// The Sender side is plain synchronous code (a reactor callback, another
// goroutine); the Receiver side is a future.

type oneshotState[T any] struct {
	mu     concurrency.Spinlock
	sent   bool
	closed bool
	val    T
	waker  api.Waker
}

// Sender is the producing half of a oneshot channel.
type Sender[T any] struct {
	st *oneshotState[T]
}

// Receiver is the consuming half of a oneshot channel. It implements
// the future contract and resolves to the sent value.
type Receiver[T any] struct {
	st *oneshotState[T]
}

// NewOneshot returns a connected sender and receiver pair.
func NewOneshot[T any]() (*Sender[T], *Receiver[T]) {
	st := &oneshotState[T]{}
	return &Sender[T]{st: st}, &Receiver[T]{st: st}
}

// Send delivers v and wakes the receiver. Sending twice, or after Close,
// panics: a oneshot carries exactly one value.
func (s *Sender[T]) Send(v T) {
	st := s.st
	st.mu.Lock()
	if st.sent || st.closed {
		st.mu.Unlock()
		panic("locks: send on spent Oneshot")
	}
	st.sent = true
	st.val = v
	w := st.waker
	st.waker = nil
	st.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// Close abandons the channel without a value; the receiver resolves with
// ErrQueueClosed. Close after a successful Send, or a second Close, is a
// no-op.
func (s *Sender[T]) Close() {
	st := s.st
	st.mu.Lock()
	if st.sent || st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	w := st.waker
	st.waker = nil
	st.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// Poll implements executor.Future.
func (r *Receiver[T]) Poll(cx *executor.Context) (any, bool, error) {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if cx.Cancelled() {
		st.waker = nil
		return nil, true, api.ErrTaskCancelled
	}
	if st.sent {
		return st.val, true, nil
	}
	if st.closed {
		return nil, true, api.ErrQueueClosed
	}
	st.waker = cx.Waker()
	return nil, false, nil
}

var _ executor.Future = (*Receiver[any])(nil)
