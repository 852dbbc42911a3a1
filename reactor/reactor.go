// File: reactor/reactor.go
// Package reactor implements the I/O driver of the core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Reactor owns one poll backend and one wake queue. Resources are
// registered through the lock-free registry; each RunOnce cycle waits on
// the backend, converts readiness into coalesced wake signals, and then
// dispatches those signals to the wakers armed by suspended futures.
//
// State machine: Idle → Polling → Dispatching → Idle in a loop, with
// Idle → ShuttingDown → Closed terminal. RunOnce must be driven by a
// single dedicated poller thread; every other method is safe from any
// thread.

package reactor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/registry"
	"github.com/momentics/hioload-aio/wakeq"
)

// safeWake keeps the dispatch loop alive when a waker panics.
func safeWake(w api.Waker) {
	defer func() { _ = recover() }()
	w.Wake()
}

// State enumerates the reactor lifecycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDispatching
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultPollTimeout bounds OS-level blocking when the caller passes no
// explicit timeout policy of its own.
const DefaultPollTimeout = 20 * time.Millisecond

const defaultMaxEvents = 128

// Option configures a Reactor.
type Option func(*Reactor)

// WithBackend replaces the platform-default poll backend.
func WithBackend(b api.PollBackend) Option {
	return func(r *Reactor) { r.backend = b }
}

// WithLogger attaches a structured logger; the default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reactor) { r.log = log }
}

// WithWakeQueueCapacity sizes the lock-free segment of the wake queue.
func WithWakeQueueCapacity(n int) Option {
	return func(r *Reactor) { r.wakeCap = n }
}

// WithTickDuration sets the timer wheel resolution.
func WithTickDuration(d time.Duration) Option {
	return func(r *Reactor) { r.tick = d }
}

// Reactor multiplexes readiness notifications for registered resources.
type Reactor struct {
	backend api.PollBackend
	reg     *registry.Registry
	wakes   *wakeq.Queue[wakeq.Signal]
	timers  *timerWheel
	log     *zap.Logger

	state     atomic.Int32
	shutdown  atomic.Bool
	closeOnce sync.Once

	wakeCap int
	tick    time.Duration
	events  []api.BackendEvent

	polls      atomic.Int64
	signals    atomic.Int64
	dispatched atomic.Int64
	coalesced  atomic.Int64
	dropped    atomic.Int64
}

// New creates a reactor. Without WithBackend it opens the platform
// default backend (epoll on Linux); platforms without one must inject a
// backend explicitly.
func New(opts ...Option) (*Reactor, error) {
	r := &Reactor{
		reg:     registry.New(),
		log:     zap.NewNop(),
		wakeCap: 1024,
		tick:    time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backend == nil {
		b, err := newDefaultBackend(defaultMaxEvents)
		if err != nil {
			return nil, err
		}
		r.backend = b
	}
	r.wakes = wakeq.New[wakeq.Signal](r.wakeCap)
	r.timers = newTimerWheel(r.tick)
	r.events = make([]api.BackendEvent, defaultMaxEvents)
	return r, nil
}

// State returns the current lifecycle state.
func (r *Reactor) State() State { return State(r.state.Load()) }

// Resources returns the number of live registered resources.
func (r *Reactor) Resources() int { return r.reg.Len() }

// Register arms a descriptor for the given interests and returns its
// handle. Timer descriptors are armed on the internal wheel and always
// report InterestReadable on expiry; the interests argument is ignored
// for them. Fd and virtual descriptors go to the poll backend.
func (r *Reactor) Register(desc api.Descriptor, interests api.Interest) (api.Handle, error) {
	if r.shutdown.Load() {
		return 0, api.ErrReactorClosed
	}
	h, err := r.reg.Insert(desc)
	if err != nil {
		return 0, err
	}
	view, err := r.reg.Get(h)
	if err != nil {
		return 0, err
	}
	switch desc.Kind() {
	case api.KindTimer:
		td := desc.(api.TimerDescriptor)
		view.SetInterests(api.InterestReadable)
		r.timers.add(h, td.Duration, time.Now())
	default:
		if err := r.backend.Arm(desc, uint64(h), interests); err != nil {
			r.reg.Remove(h)
			return 0, &api.PollBackendError{Op: "arm", Err: err}
		}
		view.SetInterests(interests)
	}
	if ce := r.log.Check(zap.DebugLevel, "resource registered"); ce != nil {
		ce.Write(zap.Stringer("handle", h), zap.Stringer("interests", interests))
	}
	return h, nil
}

// Reregister replaces the armed interest set of a live handle. For timer
// descriptors the timeout is re-armed from now.
func (r *Reactor) Reregister(h api.Handle, interests api.Interest) error {
	if r.shutdown.Load() {
		return api.ErrReactorClosed
	}
	view, err := r.reg.Get(h)
	if err != nil {
		return err
	}
	desc, err := view.Descriptor()
	if err != nil {
		return err
	}
	switch desc.Kind() {
	case api.KindTimer:
		td := desc.(api.TimerDescriptor)
		now := time.Now()
		r.timers.remove(h)
		r.timers.add(h, td.Duration, now)
	default:
		if err := r.backend.Rearm(desc, uint64(h), interests); err != nil {
			return &api.PollBackendError{Op: "rearm", Err: err}
		}
		view.SetInterests(interests)
	}
	return nil
}

// Deregister detaches a resource from the backend, then releases its slot.
// This ordering plus the generation bump in Remove guarantees no wake
// signal is delivered for h afterwards: a signal still in flight fails the
// stale-handle check at dispatch and is dropped.
//
// Deregister is NOT idempotent: a second call fails with ErrStaleHandle
// (or ErrUnknownHandle), surfacing the caller's double-release.
func (r *Reactor) Deregister(h api.Handle) error {
	view, err := r.reg.Get(h)
	if err != nil {
		return err
	}
	desc, err := view.Descriptor()
	if err != nil {
		return err
	}
	switch desc.Kind() {
	case api.KindTimer:
		r.timers.remove(h)
	default:
		if err := r.backend.Disarm(desc); err != nil {
			return &api.PollBackendError{Op: "disarm", Err: err}
		}
	}
	if _, err := r.reg.Remove(h); err != nil {
		return err
	}
	return nil
}

// PollReady consumes latched readiness for one interest of h, or arms w to
// fire when that readiness arrives. Futures call this from their Poll and
// suspend when it returns false.
func (r *Reactor) PollReady(h api.Handle, interest api.Interest, w api.Waker) (bool, error) {
	if r.shutdown.Load() {
		return false, api.ErrReactorClosed
	}
	view, err := r.reg.Get(h)
	if err != nil {
		return false, err
	}
	return view.AwaitReady(interest, w)
}

// RunOnce performs one poll-dispatch cycle: it blocks on the backend up to
// timeout (zero sweeps without blocking, negative blocks indefinitely),
// advances the timer wheel, coalesces readiness into wake signals, and
// fires the armed wakers. It returns the number of signals dispatched.
func (r *Reactor) RunOnce(timeout time.Duration) (int, error) {
	for {
		if r.shutdown.Load() {
			return 0, api.ErrReactorClosed
		}
		if r.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
			break
		}
		runtime.Gosched()
	}

	n, err := r.backend.Wait(r.events, timeout)
	r.polls.Add(1)
	if err != nil {
		// Unrecoverable backend failure: transient conditions are
		// retried inside the backend and never reach here.
		r.state.Store(int32(StateShuttingDown))
		r.shutdown.Store(true)
		r.log.Error("poll backend failed, shutting down", zap.Error(err))
		return 0, &api.PollBackendError{Op: "wait", Err: err}
	}

	for _, h := range r.timers.advance(time.Now()) {
		r.pushSignal(h, api.InterestReadable)
	}
	for i := 0; i < n; i++ {
		ev := r.events[i]
		r.pushSignal(api.Handle(ev.Token), ev.Ready)
	}

	r.state.Store(int32(StateDispatching))
	dispatched := r.dispatch()
	r.state.Store(int32(StateIdle))
	return dispatched, nil
}

func (r *Reactor) pushSignal(h api.Handle, ready api.Interest) {
	if !r.reg.TryMarkPending(h) {
		r.coalesced.Add(1)
		return
	}
	if err := r.wakes.Push(wakeq.Signal{Handle: h, Ready: ready}); err != nil {
		r.reg.ClearPending(h)
		r.dropped.Add(1)
		return
	}
	r.signals.Add(1)
}

// dispatch drains the wake queue and fires stored wakers. The pending flag
// is cleared before delivery so a readiness edge arriving during delivery
// opens a fresh signal window instead of being lost.
func (r *Reactor) dispatch() int {
	fired := 0
	r.wakes.Drain(func(sig wakeq.Signal) bool {
		r.reg.ClearPending(sig.Handle)
		view, err := r.reg.Get(sig.Handle)
		if err != nil {
			// Resource released while the signal was in flight.
			r.dropped.Add(1)
			return true
		}
		wakers, err := view.Deliver(sig.Ready)
		if err != nil {
			r.dropped.Add(1)
			return true
		}
		for _, w := range wakers {
			safeWake(w)
			fired++
		}
		return true
	})
	r.dispatched.Add(int64(fired))
	return fired
}

// Shutdown transitions the reactor to ShuttingDown, interrupts a poll in
// flight, closes the wake queue and the backend, and ends in Closed.
// Idempotent; concurrent registrations fail with ErrReactorClosed.
//
// The shutdown flag only marks the request: a failed RunOnce sets it too,
// and the teardown below must still run afterwards. The close sequence
// itself is guarded separately so it happens exactly once.
func (r *Reactor) Shutdown() error {
	r.shutdown.Store(true)
	var err error
	r.closeOnce.Do(func() {
		if werr := r.backend.Wakeup(); werr != nil {
			r.log.Warn("backend wakeup during shutdown", zap.Error(werr))
		}
		// Wait for the poller thread to finish its cycle.
		for {
			s := State(r.state.Load())
			if s == StateIdle || s == StateShuttingDown {
				break
			}
			runtime.Gosched()
		}
		r.state.Store(int32(StateShuttingDown))
		r.wakes.Close()
		cerr := r.backend.Close()
		r.state.Store(int32(StateClosed))
		r.log.Info("reactor closed")
		if cerr != nil {
			err = &api.PollBackendError{Op: "close", Err: cerr}
		}
	})
	return err
}

// Stats returns cumulative reactor counters.
func (r *Reactor) Stats() map[string]int64 {
	return map[string]int64{
		"polls":      r.polls.Load(),
		"signals":    r.signals.Load(),
		"dispatched": r.dispatched.Load(),
		"coalesced":  r.coalesced.Load(),
		"dropped":    r.dropped.Load(),
		"resources":  int64(r.reg.Len()),
	}
}
