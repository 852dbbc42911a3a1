// File: fake/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Backend is an in-memory poll backend for tests and single-process
// workloads: readiness is injected manually with Ready instead of arriving
// from the OS. Test scaffolding, so a plain sync.Mutex is fine here.

package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-aio/api"
)

// Backend implements api.PollBackend with manually injected readiness.
type Backend struct {
	mu      sync.Mutex
	armed   map[api.Descriptor]*armedEntry
	pending []api.BackendEvent
	wake    chan struct{}
	closed  bool
}

type armedEntry struct {
	token     uint64
	interests api.Interest
}

// NewBackend creates an empty fake backend.
func NewBackend() *Backend {
	return &Backend{
		armed: make(map[api.Descriptor]*armedEntry),
		wake:  make(chan struct{}, 1),
	}
}

// Ready injects a readiness event for a previously armed descriptor and
// interrupts a Wait in flight. Events for unarmed interests are filtered
// the way a real backend would filter them (error conditions always pass).
func (b *Backend) Ready(desc api.Descriptor, ready api.Interest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.armed[desc]
	if !ok {
		return fmt.Errorf("fake backend: descriptor not armed: %+v", desc)
	}
	effective := ready & (e.interests | api.InterestError)
	if effective == 0 {
		return nil
	}
	b.pending = append(b.pending, api.BackendEvent{Token: e.token, Ready: effective})
	b.signal()
	return nil
}

func (b *Backend) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Armed reports whether desc is currently registered.
func (b *Backend) Armed(desc api.Descriptor) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.armed[desc]
	return ok
}

func (b *Backend) Arm(desc api.Descriptor, token uint64, interests api.Interest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("fake backend: closed")
	}
	if _, dup := b.armed[desc]; dup {
		return fmt.Errorf("fake backend: descriptor already armed: %+v", desc)
	}
	b.armed[desc] = &armedEntry{token: token, interests: interests}
	return nil
}

func (b *Backend) Rearm(desc api.Descriptor, token uint64, interests api.Interest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.armed[desc]
	if !ok {
		return fmt.Errorf("fake backend: descriptor not armed: %+v", desc)
	}
	e.token = token
	e.interests = interests
	return nil
}

func (b *Backend) Disarm(desc api.Descriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.armed[desc]; !ok {
		return fmt.Errorf("fake backend: descriptor not armed: %+v", desc)
	}
	delete(b.armed, desc)
	return nil
}

// take moves up to len(out) pending events into out.
func (b *Backend) take(out []api.BackendEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pending)
	if n == 0 {
		return 0
	}
	if n > len(out) {
		n = len(out)
	}
	copy(out, b.pending[:n])
	b.pending = append(b.pending[:0], b.pending[n:]...)
	return n
}

func (b *Backend) Wait(out []api.BackendEvent, timeout time.Duration) (int, error) {
	if n := b.take(out); n > 0 {
		return n, nil
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed || timeout == 0 {
		return 0, nil
	}
	// A Wakeup completes the wait, mirroring the eventfd behavior of a
	// real backend.
	if timeout < 0 {
		<-b.wake
	} else {
		t := time.NewTimer(timeout)
		select {
		case <-b.wake:
			t.Stop()
		case <-t.C:
		}
	}
	return b.take(out), nil
}

func (b *Backend) Wakeup() error {
	b.signal()
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.armed = make(map[api.Descriptor]*armedEntry)
	b.pending = nil
	b.mu.Unlock()
	b.signal()
	return nil
}
