// Copyright 2026 momentics@gmail.com
// License: Apache 2.0

package concurrency

import (
	"sync"
	"testing"
)

func TestRing_PropertyConcurrentSPSC(t *testing.T) {
	ring := NewRing[int](32)
	const N = 20000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < N; i++ {
			for !ring.Enqueue(i) {
			}
		}
	}()
	var got []int
	go func() {
		defer wg.Done()
		for len(got) < N {
			if v, ok := ring.Dequeue(); ok {
				got = append(got, v)
			}
		}
	}()
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("ordering violated at %d: got %d", i, v)
		}
	}
}

func TestRing_FullEmpty(t *testing.T) {
	ring := NewRing[string](2)
	if !ring.Enqueue("a") || !ring.Enqueue("b") {
		t.Fatal("enqueue failed on empty ring")
	}
	if ring.Enqueue("c") {
		t.Fatal("enqueue succeeded on full ring")
	}
	if ring.Len() != 2 {
		t.Fatalf("len = %d, want 2", ring.Len())
	}
	v, ok := ring.Dequeue()
	if !ok || v != "a" {
		t.Fatalf("dequeue = %q ok=%v", v, ok)
	}
}
