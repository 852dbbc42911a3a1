// File: executor/executor.go
// Package executor drives polled futures to completion.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The executor runs N workers, each owning a local ready queue, with a
// shared injector built on the wake-queue primitive. Wakers push task ids
// into the injector from any thread; a worker whose local queue runs dry
// pulls from the injector, then steals from siblings. Rescheduling after
// a poll keeps the task on the worker's own queue, giving per-worker FIFO
// under bursty wakeups.
//
// Cancellation is cooperative: Cancel sets a flag and performs one
// best-effort wake; the future observes the flag on its next poll and
// unwinds. A future that suspends despite a pending cancellation is
// completed with ErrTaskCancelled by the worker.

package executor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-aio/api"
	"github.com/momentics/hioload-aio/internal/concurrency"
	"github.com/momentics/hioload-aio/wakeq"
)

const localQueueCap = 256

// Option configures an Executor.
type Option func(*Executor)

// WithLogger attaches a structured logger; the default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithInjectorCapacity sizes the lock-free segment of the shared queue.
func WithInjectorCapacity(n int) Option {
	return func(e *Executor) { e.injectorCap = n }
}

// Executor schedules tasks across a pool of workers.
type Executor struct {
	arena    *arena
	injector *wakeq.Queue[TaskID]
	workers  []*worker
	wg       sync.WaitGroup
	closed   atomic.Bool
	log      *zap.Logger

	injectorCap int

	spawned   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	steals    atomic.Int64
}

type worker struct {
	id    int
	exec  *Executor
	local *concurrency.Queue[TaskID]
}

// New creates an executor with numWorkers workers; numWorkers <= 0 uses
// the available parallelism.
func New(numWorkers int, opts ...Option) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	e := &Executor{
		arena:       newArena(),
		log:         zap.NewNop(),
		injectorCap: 1024,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.injector = wakeq.New[TaskID](e.injectorCap)
	e.workers = make([]*worker, numWorkers)
	for i := range e.workers {
		e.workers[i] = &worker{id: i, exec: e, local: concurrency.NewQueue[TaskID](localQueueCap)}
	}
	for _, w := range e.workers {
		e.wg.Add(1)
		go w.run()
	}
	return e
}

// NumWorkers returns the worker pool size.
func (e *Executor) NumWorkers() int { return len(e.workers) }

// Live returns the number of not-yet-settled tasks.
func (e *Executor) Live() int { return int(e.arena.live.Load()) }

// Spawn submits a future as a new task and returns its join handle.
func (e *Executor) Spawn(fut Future) (*JoinHandle, error) {
	if fut == nil || e.closed.Load() {
		return nil, api.ErrExecutorClosed
	}
	jh := &JoinHandle{done: make(chan struct{})}
	id, s := e.arena.alloc(fut, jh)
	jh.id = id
	e.spawned.Add(1)
	if err := e.injector.Push(id); err != nil {
		e.arena.release(id, s)
		return nil, api.ErrExecutorClosed
	}
	if ce := e.log.Check(zap.DebugLevel, "task spawned"); ce != nil {
		ce.Write(zap.Stringer("task", id))
	}
	return jh, nil
}

// MakeWaker builds a waker for id, consumable by any future that needs to
// report "not ready, wake me later". Safe from any thread.
func (e *Executor) MakeWaker(id TaskID) api.Waker {
	return taskWaker{exec: e, id: id}
}

// Cancel requests cooperative cancellation of id. Calling it twice, on an
// unknown id, or after completion is a harmless no-op.
func (e *Executor) Cancel(id TaskID) {
	s := e.arena.lookup(id)
	if s == nil {
		return
	}
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	e.cancelled.Add(1)
	e.wake(id)
}

// wake transitions a suspended task back to the ready queue. Idempotent:
// concurrent wakes collapse onto one scheduling request, and wakes for
// completed or recycled tasks are no-ops.
func (e *Executor) wake(id TaskID) {
	s := e.arena.lookup(id)
	if s == nil {
		return
	}
	if s.state.Load() == stateDone {
		return
	}
	s.notified.Store(true)
	if s.state.CompareAndSwap(stateSuspended, stateScheduled) {
		s.notified.Store(false)
		if e.injector.Push(id) != nil {
			// Executor shut down under the waker; the shutdown sweep
			// settles the task.
			s.state.Store(stateSuspended)
		}
	}
}

// taskSink receives rescheduled task ids. Worker local queues and the
// BlockOn ring both satisfy it.
type taskSink interface {
	Enqueue(id TaskID) bool
}

// runTask polls one scheduled task. Reschedules into local when given,
// falling back to the shared injector.
func (e *Executor) runTask(local taskSink, id TaskID) {
	s := e.arena.lookup(id)
	if s == nil {
		return
	}
	s.state.Store(stateRunning)
	s.notified.Store(false)

	cx := &Context{exec: e, id: id, cancelled: &s.cancelled}
	var (
		result any
		done   bool
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				result, done, err = nil, true, &api.TaskFailure{Panic: p}
			}
		}()
		result, done, err = s.fut.Poll(cx)
	}()

	if !done && s.cancelled.Load() {
		// The future suspended despite a pending cancellation request.
		result, done, err = nil, true, api.ErrTaskCancelled
	}
	if done {
		e.settle(id, s, result, err)
		return
	}

	s.state.Store(stateSuspended)
	// A wake that raced with the poll re-arms the task immediately.
	if s.notified.CompareAndSwap(true, false) &&
		s.state.CompareAndSwap(stateSuspended, stateScheduled) {
		e.reschedule(local, id)
	}
}

func (e *Executor) reschedule(local taskSink, id TaskID) {
	if local != nil && local.Enqueue(id) {
		return
	}
	if e.injector.Push(id) != nil {
		if s := e.arena.lookup(id); s != nil {
			s.state.Store(stateSuspended)
		}
	}
}

// settle records the outcome, notifies the join handle, and recycles the
// slot. Failures are isolated: a panicking task never takes a sibling
// down.
func (e *Executor) settle(id TaskID, s *taskSlot, result any, err error) {
	// Settling is first-wins: the shutdown sweep can race the worker
	// finishing the same task.
	if s.state.Swap(stateDone) == stateDone {
		return
	}
	jh := s.join
	switch {
	case err != nil:
		e.failed.Add(1)
		if tf, ok := err.(*api.TaskFailure); ok {
			e.log.Warn("task panicked", zap.Stringer("task", id), zap.Any("panic", tf.Panic))
		}
	default:
		e.completed.Add(1)
	}
	e.arena.release(id, s)
	if jh != nil {
		jh.complete(result, err)
	}
}

// worker loop: local queue, then injector, then stealing, with the
// adaptive backoff pattern used across this codebase.
func (w *worker) run() {
	defer w.exec.wg.Done()
	idle := 0
	for {
		if w.exec.closed.Load() {
			return
		}
		id, ok := w.next()
		if !ok {
			idle++
			backoffPause(idle)
			continue
		}
		idle = 0
		w.exec.runTask(w.local, id)
	}
}

func (w *worker) next() (TaskID, bool) {
	if id, ok := w.local.Dequeue(); ok {
		return id, true
	}
	if id, ok := w.exec.injector.Pop(); ok {
		return id, true
	}
	n := len(w.exec.workers)
	for off := 1; off < n; off++ {
		victim := w.exec.workers[(w.id+off)%n]
		if id, ok := victim.local.Dequeue(); ok {
			w.exec.steals.Add(1)
			return id, true
		}
	}
	return 0, false
}

func backoffPause(idle int) {
	switch {
	case idle < 8:
		runtime.Gosched()
	case idle < 64:
		time.Sleep(time.Microsecond)
	default:
		time.Sleep(time.Millisecond)
	}
}

// BlockOn runs the scheduler loop on the calling goroutine until fut
// settles, then returns its outcome. Other workers keep running; the
// calling goroutine simply joins the pool for the duration, with a
// private SPSC ring as its local queue (nobody steals from it, so tasks
// left there at exit are flushed back to the injector).
func (e *Executor) BlockOn(fut Future) (any, error) {
	jh, err := e.Spawn(fut)
	if err != nil {
		return nil, err
	}
	local := concurrency.NewRing[TaskID](localQueueCap)
	defer func() {
		for {
			id, ok := local.Dequeue()
			if !ok {
				return
			}
			e.reschedule(nil, id)
		}
	}()
	idle := 0
	for {
		select {
		case <-jh.Done():
			return jh.Outcome()
		default:
		}
		if e.closed.Load() {
			select {
			case <-jh.Done():
				return jh.Outcome()
			default:
				return nil, api.ErrExecutorClosed
			}
		}
		id, ok := local.Dequeue()
		if !ok {
			id, ok = e.stealAny()
		}
		if ok {
			idle = 0
			e.runTask(local, id)
			continue
		}
		idle++
		backoffPause(idle)
	}
}

func (e *Executor) stealAny() (TaskID, bool) {
	if id, ok := e.injector.Pop(); ok {
		return id, true
	}
	for _, w := range e.workers {
		if id, ok := w.local.Dequeue(); ok {
			return id, true
		}
	}
	return 0, false
}

// Close shuts the executor down: workers stop, the injector closes, and
// every unsettled task is completed with ErrExecutorClosed (callers
// should treat this as cancellation). Idempotent.
func (e *Executor) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.wg.Wait()
	e.injector.Close()
	for _, s := range e.arena.snapshot() {
		gen := s.gen.Load()
		if gen&1 != 1 || s.state.Load() == stateDone {
			continue
		}
		e.settle(newTaskID(s.index, gen), s, nil, api.ErrExecutorClosed)
	}
	e.log.Info("executor closed",
		zap.Int64("completed", e.completed.Load()),
		zap.Int64("failed", e.failed.Load()))
}

// Stats returns cumulative executor counters.
func (e *Executor) Stats() map[string]int64 {
	return map[string]int64{
		"spawned":   e.spawned.Load(),
		"completed": e.completed.Load(),
		"failed":    e.failed.Load(),
		"cancelled": e.cancelled.Load(),
		"steals":    e.steals.Load(),
		"live":      e.arena.live.Load(),
		"workers":   int64(len(e.workers)),
	}
}
