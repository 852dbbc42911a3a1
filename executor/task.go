// File: executor/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Task slots live in a generation-tagged arena, mirroring the registry's
// slot scheme: a TaskID packs a 32-bit index and a 32-bit generation with
// odd generations marking live tasks. Wakers hold TaskIDs, never slot
// pointers, so a waker outliving its task degrades into a no-op instead
// of touching the slot's next occupant.

package executor

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-aio/internal/concurrency"
)

// TaskID is the opaque identity of a spawned task.
type TaskID uint64

func newTaskID(index, gen uint32) TaskID {
	return TaskID(uint64(index)<<32 | uint64(gen))
}

func (id TaskID) index() uint32      { return uint32(id >> 32) }
func (id TaskID) generation() uint32 { return uint32(id) }

func (id TaskID) String() string {
	return fmt.Sprintf("task(%d:%d)", id.index(), id.generation())
}

// Task lifecycle states.
const (
	stateScheduled int32 = iota // on a ready queue, awaiting a worker
	stateRunning                // being polled
	stateSuspended              // parked, waiting for its waker
	stateDone                   // completed, cancelled or failed
)

type taskSlot struct {
	index     uint32
	gen       atomic.Uint32 // odd = live
	state     atomic.Int32
	notified  atomic.Bool // wake arrived while not suspendable
	cancelled atomic.Bool

	// fut and join are written at spawn and cleared at completion; in
	// between they are read only by the single worker running the task.
	fut  Future
	join *JoinHandle
}

// arena is the executor's task table: copy-on-grow published slot array
// plus a free list, structural changes under a spinlock, lookups
// lock-free.
type arena struct {
	mu    concurrency.Spinlock
	slots atomic.Pointer[[]*taskSlot]
	free  []uint32
	live  atomic.Int64
}

func newArena() *arena {
	a := &arena{}
	empty := make([]*taskSlot, 0)
	a.slots.Store(&empty)
	return a
}

func (a *arena) alloc(fut Future, join *JoinHandle) (TaskID, *taskSlot) {
	a.mu.Lock()
	var s *taskSlot
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s = (*a.slots.Load())[idx]
	} else {
		old := *a.slots.Load()
		s = &taskSlot{index: uint32(len(old))}
		grown := make([]*taskSlot, len(old)+1)
		copy(grown, old)
		grown[len(old)] = s
		a.slots.Store(&grown)
	}
	gen := s.gen.Load() + 1 // even → odd
	s.fut = fut
	s.join = join
	s.notified.Store(false)
	s.cancelled.Store(false)
	s.state.Store(stateScheduled)
	s.gen.Store(gen)
	a.mu.Unlock()
	a.live.Add(1)
	return newTaskID(s.index, gen), s
}

// lookup resolves a live TaskID; nil for stale or unknown ids.
func (a *arena) lookup(id TaskID) *taskSlot {
	slots := *a.slots.Load()
	idx := id.index()
	if idx >= uint32(len(slots)) {
		return nil
	}
	s := slots[idx]
	gen := id.generation()
	if gen&1 != 1 || s.gen.Load() != gen {
		return nil
	}
	return s
}

// release frees a completed slot for reuse, invalidating its TaskID.
func (a *arena) release(id TaskID, s *taskSlot) {
	a.mu.Lock()
	if s.gen.Load() == id.generation() {
		s.gen.Store(id.generation() + 1) // odd → even
		s.fut = nil
		s.join = nil
		a.free = append(a.free, s.index)
		a.live.Add(-1)
	}
	a.mu.Unlock()
}

// snapshot returns the current slot array for shutdown sweeps.
func (a *arena) snapshot() []*taskSlot { return *a.slots.Load() }
