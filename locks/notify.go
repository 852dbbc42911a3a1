// File: locks/notify.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package locks

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/executor"
	"github.com/momentics/hioload-aio/internal/concurrency"
)

// Notify is a lost-signal notification cell. NotifyOne wakes the oldest
// parked waiter and NotifyAll wakes every parked waiter; a signal sent
// while nobody is waiting is dropped. Tasks that must not miss a signal
// subscribe with Wait before the signal can be sent.
type Notify struct {
	mu      concurrency.Spinlock
	waiters *queue.Queue // of *notifyWaiter
}

type notifyWaiter struct {
	waker     api.Waker
	notified  bool
	cancelled bool
}

// NewNotify returns an empty notification cell.
func NewNotify() *Notify {
	return &Notify{waiters: queue.New()}
}

// NotifyOne signals the oldest parked waiter. With no waiters parked the
// signal is lost.
func (n *Notify) NotifyOne() {
	n.mu.Lock()
	w := n.notifyOneLocked()
	n.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// NotifyAll signals every parked waiter. With no waiters parked the
// signal is lost.
func (n *Notify) NotifyAll() {
	n.mu.Lock()
	var wakers []api.Waker
	for n.waiters != nil && n.waiters.Length() > 0 {
		w := n.waiters.Remove().(*notifyWaiter)
		if w.cancelled {
			continue
		}
		w.notified = true
		wakers = append(wakers, w.waker)
	}
	n.mu.Unlock()
	for _, w := range wakers {
		w.Wake()
	}
}

// Waiting reports the number of parked waiters.
func (n *Notify) Waiting() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	if n.waiters != nil {
		for i := 0; i < n.waiters.Length(); i++ {
			if !n.waiters.Get(i).(*notifyWaiter).cancelled {
				count++
			}
		}
	}
	return count
}

// notifyOneLocked marks the oldest live waiter notified and returns its
// waker. Caller holds mu.
func (n *Notify) notifyOneLocked() api.Waker {
	for n.waiters != nil && n.waiters.Length() > 0 {
		w := n.waiters.Remove().(*notifyWaiter)
		if w.cancelled {
			continue
		}
		w.notified = true
		return w.waker
	}
	return nil
}

// Notified returns a future that parks the task until the next signal.
// The subscription happens on the first poll, so a waiter is only
// eligible for signals sent after it started polling.
func (n *Notify) Notified() executor.Future {
	return &notifyFuture{n: n}
}

type notifyFuture struct {
	n   *Notify
	wtr *notifyWaiter
}

func (f *notifyFuture) Poll(cx *executor.Context) (any, bool, error) {
	n := f.n
	n.mu.Lock()

	if cx.Cancelled() {
		var handoff api.Waker
		if f.wtr != nil {
			if f.wtr.notified {
				// The signal arrived in flight; re-target it so it is
				// not lost with the cancelled task.
				handoff = n.notifyOneLocked()
			} else {
				f.wtr.cancelled = true
			}
		}
		n.mu.Unlock()
		if handoff != nil {
			handoff.Wake()
		}
		return nil, true, api.ErrTaskCancelled
	}

	if f.wtr != nil {
		if f.wtr.notified {
			f.wtr = nil
			n.mu.Unlock()
			return nil, true, nil
		}
		f.wtr.waker = cx.Waker()
		n.mu.Unlock()
		return nil, false, nil
	}

	f.wtr = &notifyWaiter{waker: cx.Waker()}
	if n.waiters == nil {
		n.waiters = queue.New()
	}
	n.waiters.Add(f.wtr)
	n.mu.Unlock()
	return nil, false, nil
}
