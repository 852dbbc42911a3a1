// File: locks/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package locks

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/executor"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

// Semaphore is a counting semaphore over task futures. Acquisition is
// strictly FIFO with head-of-line blocking: a large request at the head
// of the queue is never overtaken by smaller ones, so it cannot starve.
type Semaphore struct {
	mu      concurrency.Spinlock
	permits int64
	waiters *queue.Queue // of *semWaiter
}

type semWaiter struct {
	n         int64
	waker     api.Waker
	granted   bool
	cancelled bool
}

// NewSemaphore returns a semaphore holding n permits.
func NewSemaphore(n int64) *Semaphore {
	if n < 0 {
		panic("locks: negative semaphore size")
	}
	return &Semaphore{permits: n, waiters: queue.New()}
}

// TryAcquire takes n permits without suspending. It fails when fewer
// than n permits are free or when parked waiters are ahead in line.
func (s *Semaphore) TryAcquire(n int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permits < n || s.headWaiter() != nil {
		return false
	}
	s.permits -= n
	return true
}

// Acquire returns a future that resolves once n permits have been taken.
func (s *Semaphore) Acquire(n int64) executor.Future {
	return &semFuture{s: s, n: n}
}

// Release returns n permits and grants as many queued waiters as the new
// balance covers, in arrival order.
func (s *Semaphore) Release(n int64) {
	s.mu.Lock()
	s.permits += n
	wakers := s.grantLocked()
	s.mu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
}

// Permits reports the number of free permits.
func (s *Semaphore) Permits() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permits
}

// grantLocked satisfies waiters from the head while permits last and
// returns their wakers. Caller holds mu.
func (s *Semaphore) grantLocked() []api.Waker {
	var wakers []api.Waker
	for {
		w := s.headWaiter()
		if w == nil || w.n > s.permits {
			return wakers
		}
		s.waiters.Remove()
		s.permits -= w.n
		w.granted = true
		wakers = append(wakers, w.waker)
	}
}

// headWaiter returns the oldest live waiter, discarding cancelled ones.
// Caller holds mu.
func (s *Semaphore) headWaiter() *semWaiter {
	for s.waiters != nil && s.waiters.Length() > 0 {
		w := s.waiters.Peek().(*semWaiter)
		if !w.cancelled {
			return w
		}
		s.waiters.Remove()
	}
	return nil
}

type semFuture struct {
	s   *Semaphore
	n   int64
	wtr *semWaiter
}

func (f *semFuture) Poll(cx *executor.Context) (any, bool, error) {
	s := f.s
	s.mu.Lock()

	if cx.Cancelled() {
		var wakers []api.Waker
		if f.wtr != nil {
			if f.wtr.granted {
				// Permits landed in flight; return them and let the
				// grant cascade continue.
				s.permits += f.wtr.n
				wakers = s.grantLocked()
			} else {
				f.wtr.cancelled = true
				// A cancelled head may have been the blocker; retry the
				// queue behind it.
				wakers = s.grantLocked()
			}
		}
		s.mu.Unlock()
		for _, w := range wakers {
			w.Wake()
		}
		return nil, true, api.ErrTaskCancelled
	}

	if f.wtr != nil {
		if f.wtr.granted {
			f.wtr = nil
			s.mu.Unlock()
			return nil, true, nil
		}
		f.wtr.waker = cx.Waker()
		s.mu.Unlock()
		return nil, false, nil
	}

	if s.permits >= f.n && s.headWaiter() == nil {
		s.permits -= f.n
		s.mu.Unlock()
		return nil, true, nil
	}

	f.wtr = &semWaiter{n: f.n, waker: cx.Waker()}
	if s.waiters == nil {
		s.waiters = queue.New()
	}
	s.waiters.Add(f.wtr)
	s.mu.Unlock()
	return nil, false, nil
}
