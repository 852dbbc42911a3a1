// File: registry/slot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resource slot state and the SlotView handed to the reactor. The slot
// spinlock guards readiness bits and stored wakers; wakers collected under
// the lock are always fired outside it.

package registry

import (
	"sync/atomic"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

const (
	wakerReadable = 0
	wakerWritable = 1
)

type slot struct {
	index     uint32
	gen       atomic.Uint32 // odd = live, even = free
	interests atomic.Uint32 // armed interest set
	pending   atomic.Bool   // wake-signal coalescing flag

	mu     concurrency.Spinlock // guards desc, ready, wakers
	desc   api.Descriptor
	ready  api.Interest // latched readiness not yet consumed
	wakers [2]api.Waker
}

func (s *slot) validate(gen uint32) error {
	cur := s.gen.Load()
	switch {
	case cur == gen && gen&1 == 1:
		return nil
	case gen < cur:
		return api.ErrStaleHandle
	default:
		return api.ErrUnknownHandle
	}
}

// SlotView is a generation-pinned view of a resource slot. Every operation
// revalidates the generation, so a view held across a Remove degrades into
// ErrStaleHandle instead of touching the next occupant.
type SlotView struct {
	s   *slot
	gen uint32
}

// Descriptor returns the registered descriptor.
func (v *SlotView) Descriptor() (api.Descriptor, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.validate(v.gen); err != nil {
		return nil, err
	}
	return v.s.desc, nil
}

// Interests returns the armed interest set.
func (v *SlotView) Interests() api.Interest {
	return api.Interest(v.s.interests.Load())
}

// SetInterests replaces the armed interest set.
func (v *SlotView) SetInterests(i api.Interest) {
	v.s.interests.Store(uint32(i))
}

// AwaitReady consumes latched readiness for interest, or arms w to be
// fired on the next matching Deliver. It returns true when readiness was
// already latched; the caller should then perform I/O until it would
// block, edge-triggered style.
func (v *SlotView) AwaitReady(interest api.Interest, w api.Waker) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.validate(v.gen); err != nil {
		return false, err
	}
	if v.s.ready&interest != 0 {
		v.s.ready &^= interest
		return true, nil
	}
	if interest.Has(api.InterestReadable) || interest.Has(api.InterestError) {
		v.s.wakers[wakerReadable] = w
	}
	if interest.Has(api.InterestWritable) {
		v.s.wakers[wakerWritable] = w
	}
	return false, nil
}

// Deliver latches readiness bits and detaches the wakers armed for them.
// The returned wakers must be invoked by the caller outside the slot lock.
func (v *SlotView) Deliver(ready api.Interest) ([]api.Waker, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.validate(v.gen); err != nil {
		return nil, err
	}
	v.s.ready |= ready
	var fired []api.Waker
	if ready.Has(api.InterestReadable) || ready.Has(api.InterestError) {
		if w := v.s.wakers[wakerReadable]; w != nil {
			v.s.wakers[wakerReadable] = nil
			fired = append(fired, w)
		}
	}
	if ready.Has(api.InterestWritable) || ready.Has(api.InterestError) {
		if w := v.s.wakers[wakerWritable]; w != nil {
			v.s.wakers[wakerWritable] = nil
			fired = append(fired, w)
		}
	}
	return fired, nil
}
