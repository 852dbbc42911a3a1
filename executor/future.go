// File: executor/future.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The polled-future contract driven by the executor, and the context
// passed into every poll.

package executor

import (
	"sync/atomic"

	"github.com/momentics/hioload-aio/api"
)

// Future is a suspendable unit of computation. The executor polls it; a
// poll either completes the future (done=true, with a result or error) or
// suspends it (done=false) after the future has arranged for cx.Waker()
// to be invoked once progress is possible. Returning done=false without
// arming the waker parks the task forever.
//
// A future is polled by at most one worker at a time and is never
// preempted mid-poll.
type Future interface {
	Poll(cx *Context) (result any, done bool, err error)
}

// FutureFunc adapts a function to the Future interface.
type FutureFunc func(cx *Context) (any, bool, error)

func (f FutureFunc) Poll(cx *Context) (any, bool, error) { return f(cx) }

// Ready returns a future that completes immediately with v.
func Ready(v any) Future {
	return FutureFunc(func(*Context) (any, bool, error) { return v, true, nil })
}

// Context carries the per-poll capabilities of a task: its waker and its
// cooperative cancellation flag. Contexts are valid only for the duration
// of the poll they are passed to; futures must not retain them across
// suspensions (the waker may be retained).
type Context struct {
	exec      *Executor
	id        TaskID
	cancelled *atomic.Bool
}

// Waker returns a thread-safe waker for this task. Cloning is free: the
// waker is a small value closing over the task identity, not the task.
func (cx *Context) Waker() api.Waker { return taskWaker{exec: cx.exec, id: cx.id} }

// Cancelled reports whether cancellation was requested. A future that
// observes true should release its resources and complete; if it suspends
// anyway, the executor completes the task with ErrTaskCancelled.
func (cx *Context) Cancelled() bool { return cx.cancelled.Load() }

// TaskID returns the identity of the task being polled.
func (cx *Context) TaskID() TaskID { return cx.id }

// Executor returns the executor driving this poll, for spawning subtasks.
func (cx *Context) Executor() *Executor { return cx.exec }

// taskWaker bridges "wake this task" into a scheduling request on the
// executor's ready queue. Idempotent; a no-op after the task completes.
type taskWaker struct {
	exec *Executor
	id   TaskID
}

func (w taskWaker) Wake() { w.exec.wake(w.id) }
