// File: executor/join.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// JoinHandle carries a task's outcome to whoever awaits it. The handle
// owns its own completion state, decoupled from the task slot, so it
// stays readable after the slot has been recycled.

package executor

import (
	"context"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

// JoinHandle is returned by Spawn. It can be awaited from plain goroutines
// (Wait, Done) or from another task (Future).
type JoinHandle struct {
	id   TaskID
	done chan struct{}

	mu        concurrency.Spinlock
	completed bool
	result    any
	err       error
	waker     api.Waker
}

// ID returns the identity of the joined task.
func (h *JoinHandle) ID() TaskID { return h.id }

// Done is closed when the task completes, fails or is cancelled.
func (h *JoinHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task settles or ctx expires.
func (h *JoinHandle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.Outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the settled result. Valid only after Done is closed;
// before that it reports not-settled via ok=false semantics of TryOutcome.
func (h *JoinHandle) Outcome() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// TryOutcome reports the outcome without blocking.
func (h *JoinHandle) TryOutcome() (result any, err error, settled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err, h.completed
}

// Future returns a future settling with the task's outcome, for awaiting
// one task from another.
func (h *JoinHandle) Future() Future { return joinFuture{h} }

// complete settles the handle. Called exactly once, by the worker that
// finished the task.
func (h *JoinHandle) complete(result any, err error) {
	h.mu.Lock()
	h.completed = true
	h.result = result
	h.err = err
	w := h.waker
	h.waker = nil
	h.mu.Unlock()
	close(h.done)
	if w != nil {
		w.Wake()
	}
}

type joinFuture struct{ h *JoinHandle }

func (f joinFuture) Poll(cx *Context) (any, bool, error) {
	f.h.mu.Lock()
	if f.h.completed {
		res, err := f.h.result, f.h.err
		f.h.mu.Unlock()
		return res, true, err
	}
	if cx.Cancelled() {
		f.h.waker = nil
		f.h.mu.Unlock()
		return nil, true, api.ErrTaskCancelled
	}
	f.h.waker = cx.Waker()
	f.h.mu.Unlock()
	return nil, false, nil
}
