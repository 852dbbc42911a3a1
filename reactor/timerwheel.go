// File: reactor/timerwheel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hashed timer wheel for timeout descriptors. The wheel is ticked from
// RunOnce on the poller thread; expiry is delivered as readable-readiness
// for the timer's handle, the same path socket readiness takes.

package reactor

import (
	"time"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

const wheelSlots = 512

type timerEntry struct {
	handle api.Handle
	slot   int
	rounds int
}

type timerWheel struct {
	mu      concurrency.Spinlock
	buckets [wheelSlots]map[api.Handle]*timerEntry
	entries map[api.Handle]*timerEntry
	tick    time.Duration
	pos     int
	last    time.Time
	started bool
}

func newTimerWheel(tick time.Duration) *timerWheel {
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &timerWheel{
		entries: make(map[api.Handle]*timerEntry),
		tick:    tick,
	}
}

// add arms a one-shot timeout for h, rounded up to the wheel resolution.
func (tw *timerWheel) add(h api.Handle, d time.Duration, now time.Time) {
	ticks := int(d / tw.tick)
	if time.Duration(ticks)*tw.tick < d {
		ticks++
	}
	if ticks < 1 {
		ticks = 1
	}

	tw.mu.Lock()
	if !tw.started {
		tw.last = now
		tw.started = true
	}
	// rounds counts full rotations remaining before the target slot fires.
	// ticks-1 keeps an exact multiple of the wheel size on the current
	// rotation: a wheelSlots-tick timer expires when the cursor wraps back
	// to its slot, not one rotation later.
	e := &timerEntry{
		handle: h,
		slot:   (tw.pos + ticks) % wheelSlots,
		rounds: (ticks - 1) / wheelSlots,
	}
	if tw.buckets[e.slot] == nil {
		tw.buckets[e.slot] = make(map[api.Handle]*timerEntry)
	}
	tw.buckets[e.slot][h] = e
	tw.entries[h] = e
	tw.mu.Unlock()
}

// remove disarms h. Unknown handles are ignored.
func (tw *timerWheel) remove(h api.Handle) {
	tw.mu.Lock()
	if e, ok := tw.entries[h]; ok {
		delete(tw.buckets[e.slot], h)
		delete(tw.entries, h)
	}
	tw.mu.Unlock()
}

// advance steps the wheel to now and returns the handles of expired
// timers. Called from the poller thread only.
func (tw *timerWheel) advance(now time.Time) []api.Handle {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if !tw.started || len(tw.entries) == 0 {
		tw.last = now
		return nil
	}
	steps := int(now.Sub(tw.last) / tw.tick)
	if steps <= 0 {
		return nil
	}
	tw.last = tw.last.Add(time.Duration(steps) * tw.tick)

	var expired []api.Handle
	for s := 0; s < steps; s++ {
		tw.pos = (tw.pos + 1) % wheelSlots
		bucket := tw.buckets[tw.pos]
		for h, e := range bucket {
			if e.rounds > 0 {
				e.rounds--
				continue
			}
			delete(bucket, h)
			delete(tw.entries, h)
			expired = append(expired, h)
		}
	}
	return expired
}
