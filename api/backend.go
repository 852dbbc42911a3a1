// File: api/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral poll backend contract. The core does not prescribe a
// particular OS mechanism; epoll on Linux and the in-memory fake backend
// are two shipped implementations of this interface.

package api

import "time"

// PollBackend multiplexes OS-level readiness notifications. A backend is
// owned by exactly one reactor; Wait is called from a single dedicated
// poller thread, while Arm/Rearm/Disarm/Wakeup may be called from any
// thread concurrently with Wait.
type PollBackend interface {
	// Arm registers a descriptor for the given interests. The token is
	// round-tripped verbatim in BackendEvents for this descriptor.
	Arm(desc Descriptor, token uint64, interests Interest) error

	// Rearm replaces the armed interest set of a registered descriptor.
	Rearm(desc Descriptor, token uint64, interests Interest) error

	// Disarm removes a registered descriptor from the backend.
	Disarm(desc Descriptor) error

	// Wait blocks up to timeout for readiness, filling events and
	// returning the count written. A zero timeout performs a non-blocking
	// sweep; a negative timeout blocks indefinitely. Interrupted waits
	// are retried or reported as (0, nil), never as an error.
	Wait(events []BackendEvent, timeout time.Duration) (int, error)

	// Wakeup interrupts a concurrent Wait. Safe from any thread.
	Wakeup() error

	// Close releases backend resources. The backend is unusable after.
	Close() error
}
