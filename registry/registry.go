// File: registry/registry.go
// Package registry implements the concurrent resource table of the core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The registry maps generation-tagged handles to resource slots. It is
// sharded by slot index; each shard serializes structural changes (insert,
// remove, growth) under a spinlock while lookups run lock-free against an
// atomically published slot array. Slot pointers are stable for the life
// of the registry, so a lookup snapshot can never observe a dangling slot.
//
// Generation tags encode liveness by parity: a live occupant always has an
// odd generation, a released slot an even one. Insert bumps even→odd,
// Remove bumps odd→even, so every issued handle names exactly one
// occupancy and a released handle can never alias the next occupant.

package registry

import (
	"sync/atomic"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

const (
	shardBits = 4
	numShards = 1 << shardBits
	shardMask = numShards - 1
)

// Registry is a concurrent table of resource slots keyed by Handle.
type Registry struct {
	shards [numShards]shard
	next   atomic.Uint32 // round-robin shard cursor for inserts
	live   atomic.Int64
}

type shard struct {
	mu    concurrency.Spinlock
	slots atomic.Pointer[[]*slot] // copy-on-grow: published arrays are immutable
	free  []uint32                // local indices of released slots
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		empty := make([]*slot, 0)
		r.shards[i].slots.Store(&empty)
	}
	return r
}

// Len returns the number of live slots.
func (r *Registry) Len() int { return int(r.live.Load()) }

// Insert allocates a slot for desc and returns a fresh-generation handle.
// Released slots are reclaimed through the per-shard free list.
func (r *Registry) Insert(desc api.Descriptor) (api.Handle, error) {
	if desc == nil {
		return 0, api.ErrUnknownHandle
	}
	sid := r.next.Add(1) & shardMask
	sh := &r.shards[sid]

	sh.mu.Lock()
	var s *slot
	if n := len(sh.free); n > 0 {
		local := sh.free[n-1]
		sh.free = sh.free[:n-1]
		s = (*sh.slots.Load())[local]
	} else {
		old := *sh.slots.Load()
		local := uint32(len(old))
		s = &slot{index: local<<shardBits | sid}
		grown := make([]*slot, len(old)+1)
		copy(grown, old)
		grown[local] = s
		sh.slots.Store(&grown)
	}
	s.mu.Lock()
	gen := s.gen.Load() + 1 // even → odd: slot becomes live
	s.desc = desc
	s.ready = 0
	s.wakers[0], s.wakers[1] = nil, nil
	s.interests.Store(0)
	s.pending.Store(false)
	s.gen.Store(gen)
	s.mu.Unlock()
	sh.mu.Unlock()

	r.live.Add(1)
	return api.NewHandle(s.index, gen), nil
}

// resolve maps a handle to its slot without validating the generation.
func (r *Registry) resolve(h api.Handle) *slot {
	index := h.Index()
	sh := &r.shards[index&shardMask]
	slots := *sh.slots.Load()
	local := index >> shardBits
	if local >= uint32(len(slots)) {
		return nil
	}
	return slots[local]
}

// Get returns a view of the slot named by h. A released handle fails with
// ErrStaleHandle; a handle that never resolved fails with ErrUnknownHandle.
func (r *Registry) Get(h api.Handle) (*SlotView, error) {
	s := r.resolve(h)
	if s == nil {
		return nil, api.ErrUnknownHandle
	}
	if err := s.validate(h.Generation()); err != nil {
		return nil, err
	}
	return &SlotView{s: s, gen: h.Generation()}, nil
}

// Remove releases the slot named by h and returns its descriptor. The
// generation bump happens before the slot is recycled, so any concurrent
// lookup or queued wake signal for h fails stale from that point on.
func (r *Registry) Remove(h api.Handle) (api.Descriptor, error) {
	s := r.resolve(h)
	if s == nil {
		return nil, api.ErrUnknownHandle
	}
	sh := &r.shards[h.Index()&shardMask]

	sh.mu.Lock()
	s.mu.Lock()
	if err := s.validate(h.Generation()); err != nil {
		s.mu.Unlock()
		sh.mu.Unlock()
		return nil, err
	}
	desc := s.desc
	s.gen.Store(h.Generation() + 1) // odd → even: invalidates h immediately
	s.desc = nil
	s.ready = 0
	s.wakers[0], s.wakers[1] = nil, nil
	s.interests.Store(0)
	s.pending.Store(false)
	s.mu.Unlock()
	sh.free = append(sh.free, h.Index()>>shardBits)
	sh.mu.Unlock()

	r.live.Add(-1)
	return desc, nil
}

// TryMarkPending is the wake-signal dedup gate: it returns true exactly
// once per pending window. False means the handle is stale, unknown, or
// already marked pending.
func (r *Registry) TryMarkPending(h api.Handle) bool {
	s := r.resolve(h)
	if s == nil {
		return false
	}
	if s.validate(h.Generation()) != nil {
		return false
	}
	if !s.pending.CompareAndSwap(false, true) {
		return false
	}
	// The slot may have been released between validate and the CAS; the
	// flag is harmless on a freed slot (Insert resets it) but the signal
	// must not be enqueued.
	if s.validate(h.Generation()) != nil {
		s.pending.Store(false)
		return false
	}
	return true
}

// ClearPending opens a new pending window for h. Stale handles are ignored.
func (r *Registry) ClearPending(h api.Handle) {
	s := r.resolve(h)
	if s == nil {
		return
	}
	if s.validate(h.Generation()) != nil {
		return
	}
	s.pending.Store(false)
}
