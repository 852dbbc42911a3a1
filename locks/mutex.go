// File: locks/mutex.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package locks

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/executor"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

// Mutex is a task-level mutual exclusion lock with strict FIFO handoff.
// An unlock transfers ownership directly to the oldest waiter, so a
// stream of fast lockers can never starve a parked task.
//
// The zero value is an unlocked mutex.
type Mutex struct {
	mu      concurrency.Spinlock
	locked  bool
	waiters *queue.Queue // of *mutexWaiter
}

type mutexWaiter struct {
	waker     api.Waker
	granted   bool
	cancelled bool
}

// NewMutex returns an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{waiters: queue.New()}
}

// Guard represents held ownership of a Mutex. It is returned by a
// resolved Acquire future and must be released exactly once.
type Guard struct {
	m *Mutex
}

// Unlock releases the mutex. Unlocking twice through the same guard, or
// unlocking a mutex that is not held, panics.
func (g Guard) Unlock() {
	g.m.unlock()
}

// TryLock acquires the mutex without suspending. It fails when the lock
// is held or when parked waiters are ahead in line.
func (m *Mutex) TryLock() (Guard, bool) {
	m.mu.Lock()
	if m.locked || m.waitersPending() {
		m.mu.Unlock()
		return Guard{}, false
	}
	m.locked = true
	m.mu.Unlock()
	return Guard{m: m}, true
}

// Acquire returns a future that resolves to a Guard once the calling
// task owns the mutex. Waiters are served in arrival order.
func (m *Mutex) Acquire() executor.Future {
	return &mutexFuture{m: m}
}

type mutexFuture struct {
	m   *Mutex
	wtr *mutexWaiter
}

func (f *mutexFuture) Poll(cx *executor.Context) (any, bool, error) {
	m := f.m
	m.mu.Lock()

	if cx.Cancelled() {
		var handoff api.Waker
		if f.wtr != nil {
			if f.wtr.granted {
				// Ownership arrived in flight; pass it on instead of
				// leaking a held lock.
				handoff = m.unlockLocked()
			} else {
				f.wtr.cancelled = true
			}
		}
		m.mu.Unlock()
		if handoff != nil {
			handoff.Wake()
		}
		return nil, true, api.ErrTaskCancelled
	}

	if f.wtr != nil {
		if f.wtr.granted {
			f.wtr = nil
			m.mu.Unlock()
			return Guard{m: m}, true, nil
		}
		// Spurious re-poll while still queued; refresh the waker in case
		// the task migrated.
		f.wtr.waker = cx.Waker()
		m.mu.Unlock()
		return nil, false, nil
	}

	if !m.locked && !m.waitersPending() {
		m.locked = true
		m.mu.Unlock()
		return Guard{m: m}, true, nil
	}

	f.wtr = &mutexWaiter{waker: cx.Waker()}
	if m.waiters == nil {
		m.waiters = queue.New()
	}
	m.waiters.Add(f.wtr)
	m.mu.Unlock()
	return nil, false, nil
}

// Waiters reports the number of tasks parked on the lock.
func (m *Mutex) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	if m.waiters != nil {
		for i := 0; i < m.waiters.Length(); i++ {
			if !m.waiters.Get(i).(*mutexWaiter).cancelled {
				count++
			}
		}
	}
	return count
}

// waitersPending reports whether a live waiter is queued. Caller holds mu.
func (m *Mutex) waitersPending() bool {
	if m.waiters == nil {
		return false
	}
	for i := 0; i < m.waiters.Length(); i++ {
		if !m.waiters.Get(i).(*mutexWaiter).cancelled {
			return true
		}
	}
	return false
}

func (m *Mutex) unlock() {
	m.mu.Lock()
	w := m.unlockLocked()
	m.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// unlockLocked releases or hands off the lock and returns the waker to
// fire, if any. Caller holds mu.
func (m *Mutex) unlockLocked() api.Waker {
	if !m.locked {
		panic("locks: unlock of unlocked Mutex")
	}
	for m.waiters != nil && m.waiters.Length() > 0 {
		wtr := m.waiters.Remove().(*mutexWaiter)
		if wtr.cancelled {
			continue
		}
		// Direct handoff: the lock stays held on behalf of the waiter.
		wtr.granted = true
		return wtr.waker
	}
	m.locked = false
	return nil
}
