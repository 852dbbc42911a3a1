// File: api/waker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Waker is a thread-safe capability to request that a suspended task be
// polled again. Wakers are cheap value types closing over a task identity;
// calling Wake is idempotent and is a no-op once the task has completed.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain function to the Waker interface.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }
