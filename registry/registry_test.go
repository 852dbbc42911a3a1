// Copyright 2026 momentics@gmail.com
// License: Apache 2.0

package registry

import (
	"errors"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-aio/api"
)

func TestRegistry_LiveAndStaleLookups(t *testing.T) {
	r := New()
	h, err := r.Insert(api.FdDescriptor{Fd: 7})
	if err != nil {
		t.Fatal(err)
	}
	if h.IsZero() {
		t.Fatal("insert returned zero handle")
	}

	v, err := r.Get(h)
	if err != nil {
		t.Fatalf("get live handle: %v", err)
	}
	desc, err := v.Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	if desc.(api.FdDescriptor).Fd != 7 {
		t.Fatalf("wrong descriptor: %+v", desc)
	}

	if _, err := r.Remove(h); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Get(h); !errors.Is(err, api.ErrStaleHandle) {
		t.Fatalf("get after remove = %v, want ErrStaleHandle", err)
	}
	if _, err := r.Remove(h); !errors.Is(err, api.ErrStaleHandle) {
		t.Fatalf("double remove = %v, want ErrStaleHandle", err)
	}
}

func TestRegistry_UnknownHandle(t *testing.T) {
	r := New()
	if _, err := r.Get(api.NewHandle(1234, 1)); !errors.Is(err, api.ErrUnknownHandle) {
		t.Fatalf("out-of-range get = %v, want ErrUnknownHandle", err)
	}
	h, _ := r.Insert(api.FdDescriptor{Fd: 1})
	future := api.NewHandle(h.Index(), h.Generation()+2)
	if _, err := r.Get(future); !errors.Is(err, api.ErrUnknownHandle) {
		t.Fatalf("never-issued generation = %v, want ErrUnknownHandle", err)
	}
}

func TestRegistry_SlotReuseBumpsGeneration(t *testing.T) {
	r := New()
	handles := make(map[api.Handle]struct{})
	// Cycle far past the shard count so slots are reused via the free list.
	for i := 0; i < 200; i++ {
		h, err := r.Insert(api.FdDescriptor{Fd: i})
		if err != nil {
			t.Fatal(err)
		}
		if _, dup := handles[h]; dup {
			t.Fatalf("handle %v issued twice", h)
		}
		handles[h] = struct{}{}
		if _, err := r.Remove(h); err != nil {
			t.Fatal(err)
		}
	}
	for h := range handles {
		if _, err := r.Get(h); !errors.Is(err, api.ErrStaleHandle) {
			t.Fatalf("recycled handle %v resolved: %v", h, err)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("live count = %d, want 0", r.Len())
	}
}

func TestRegistry_PendingGateCoalesces(t *testing.T) {
	r := New()
	h, _ := r.Insert(api.VirtualDescriptor{ID: 1})

	if !r.TryMarkPending(h) {
		t.Fatal("first mark should succeed")
	}
	for i := 0; i < 3; i++ {
		if r.TryMarkPending(h) {
			t.Fatal("duplicate mark slipped through the gate")
		}
	}
	r.ClearPending(h)
	if !r.TryMarkPending(h) {
		t.Fatal("mark after clear should open a new window")
	}

	r.Remove(h)
	if r.TryMarkPending(h) {
		t.Fatal("mark on removed handle should fail")
	}
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	const goroutines = 8
	const perG = 1000

	r := New()
	var g errgroup.Group
	var mu sync.Mutex
	all := make([]api.Handle, 0, goroutines*perG)

	for i := 0; i < goroutines; i++ {
		i := i
		g.Go(func() error {
			local := make([]api.Handle, 0, perG)
			for j := 0; j < perG; j++ {
				h, err := r.Insert(api.FdDescriptor{Fd: i*perG + j})
				if err != nil {
					return err
				}
				if _, err := r.Get(h); err != nil {
					return err
				}
				local = append(local, h)
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if r.Len() != goroutines*perG {
		t.Fatalf("live count = %d, want %d", r.Len(), goroutines*perG)
	}

	var g2 errgroup.Group
	for i := 0; i < goroutines; i++ {
		part := all[i*perG : (i+1)*perG]
		g2.Go(func() error {
			for _, h := range part {
				if _, err := r.Remove(h); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Fatalf("live count after churn = %d, want 0", r.Len())
	}
	for _, h := range all {
		if _, err := r.Get(h); !errors.Is(err, api.ErrStaleHandle) {
			t.Fatalf("handle %v leaked: %v", h, err)
		}
	}
}

type countWaker struct{ n *int }

func (w countWaker) Wake() { *w.n++ }

func TestSlotView_AwaitDeliver(t *testing.T) {
	r := New()
	h, _ := r.Insert(api.VirtualDescriptor{ID: 9})
	v, err := r.Get(h)
	if err != nil {
		t.Fatal(err)
	}

	var wakes int
	ready, err := v.AwaitReady(api.InterestReadable, countWaker{&wakes})
	if err != nil || ready {
		t.Fatalf("await on quiescent slot: ready=%v err=%v", ready, err)
	}

	fired, err := v.Deliver(api.InterestReadable)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range fired {
		w.Wake()
	}
	if wakes != 1 {
		t.Fatalf("wakes = %d, want 1", wakes)
	}

	// Readiness delivered with no waker armed is latched for the next await.
	if _, err := v.Deliver(api.InterestWritable); err != nil {
		t.Fatal(err)
	}
	ready, err = v.AwaitReady(api.InterestWritable, countWaker{&wakes})
	if err != nil || !ready {
		t.Fatalf("latched readiness not observed: ready=%v err=%v", ready, err)
	}
	// Latched bit is consumed exactly once.
	ready, _ = v.AwaitReady(api.InterestWritable, countWaker{&wakes})
	if ready {
		t.Fatal("latched readiness consumed twice")
	}
}
