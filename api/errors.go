// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy of the async I/O core. Registry and queue errors are
// returned to callers, never swallowed; task failures are isolated per
// task and surfaced through join handles.

package api

import "fmt"

// Sentinel errors used across the library.
var (
	// ErrStaleHandle reports a generation mismatch: the handle was valid
	// once but its slot has been released since. This indicates a
	// use-after-release bug in the caller and never silently succeeds.
	ErrStaleHandle = fmt.Errorf("stale handle: generation mismatch")

	// ErrUnknownHandle reports a handle that does not resolve at all:
	// out-of-range index, never-issued generation, or double deregister.
	ErrUnknownHandle = fmt.Errorf("unknown handle")

	// ErrQueueClosed reports an operation against a closed wake queue.
	// Recoverable: the caller should treat the pending work as cancelled.
	ErrQueueClosed = fmt.Errorf("wake queue is closed")

	// ErrExecutorClosed reports task submission to a shut-down executor.
	ErrExecutorClosed = fmt.Errorf("executor is closed")

	// ErrReactorClosed reports an operation against a reactor that has
	// begun shutting down.
	ErrReactorClosed = fmt.Errorf("reactor is closed")

	// ErrTaskCancelled is the completion outcome of a cooperatively
	// cancelled task.
	ErrTaskCancelled = fmt.Errorf("task cancelled")
)

// PollBackendError wraps a failure of the OS polling mechanism. Transient
// conditions (interrupted calls) are retried inside the backend and never
// surface; an unrecoverable PollBackendError transitions the reactor to
// ShuttingDown.
type PollBackendError struct {
	Op  string
	Err error
}

func (e *PollBackendError) Error() string {
	return fmt.Sprintf("poll backend: %s: %v", e.Op, e.Err)
}

func (e *PollBackendError) Unwrap() error { return e.Err }

// TaskFailure is the outcome of a task whose future panicked while being
// polled. It is delivered to whoever awaits the task; sibling tasks are
// unaffected.
type TaskFailure struct {
	Panic any
}

func (e *TaskFailure) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Panic)
}
