// Copyright 2026 momentics@gmail.com
// License: Apache 2.0

package concurrency

import (
	"sync"
	"testing"
)

func TestQueue_FIFOSingleThread(t *testing.T) {
	q := NewQueue[int](8)
	for i := 0; i < 8; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d failed on non-full queue", i)
		}
	}
	if q.Enqueue(99) {
		t.Fatalf("enqueue succeeded on full queue")
	}
	for i := 0; i < 8; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("dequeue %d: got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("dequeue succeeded on empty queue")
	}
}

func TestQueue_PropertyConcurrentMPMC(t *testing.T) {
	q := NewQueue[int](64)
	const producers = 4
	const consumers = 4
	const perProducer = 5000

	var wg sync.WaitGroup
	results := make(map[int]int)
	var mtx sync.Mutex

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				v := base*perProducer + j
				for !q.Enqueue(v) {
				}
			}
		}(p)
	}
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < producers * perProducer / consumers; n++ {
				for {
					v, ok := q.Dequeue()
					if ok {
						mtx.Lock()
						results[v]++
						mtx.Unlock()
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	if len(results) != producers*perProducer {
		t.Fatalf("expected %d distinct values, got %d", producers*perProducer, len(results))
	}
	for v, n := range results {
		if n != 1 {
			t.Fatalf("value %d consumed %d times", v, n)
		}
	}
}

func TestQueue_CapRoundsUp(t *testing.T) {
	q := NewQueue[int](100)
	if q.Cap() != 128 {
		t.Fatalf("expected capacity 128, got %d", q.Cap())
	}
}
