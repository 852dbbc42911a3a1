// Copyright 2026 momentics@gmail.com
// License: Apache 2.0

package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-aio/api"
)

func TestExecutor_SpawnAndWait(t *testing.T) {
	e := New(2)
	defer e.Close()

	jh, err := e.Spawn(Ready(42))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := jh.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != 42 {
		t.Fatalf("result = %v, want 42", res)
	}
}

func TestExecutor_BlockOn(t *testing.T) {
	e := New(0)
	defer e.Close()

	res, err := e.BlockOn(Ready("done"))
	if err != nil {
		t.Fatal(err)
	}
	if res != "done" {
		t.Fatalf("result = %v", res)
	}
}

func TestExecutor_SuspendAndWake(t *testing.T) {
	e := New(2)
	defer e.Close()

	var wakerSlot atomic.Value // api.Waker
	polls := atomic.Int64{}

	jh, err := e.Spawn(FutureFunc(func(cx *Context) (any, bool, error) {
		if polls.Add(1) == 1 {
			wakerSlot.Store(cx.Waker())
			return nil, false, nil
		}
		return "woken", true, nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Wait for the first poll to park the task, then wake it externally,
	// the way a reactor dispatch would.
	deadline := time.Now().Add(2 * time.Second)
	for wakerSlot.Load() == nil {
		if time.Now().After(deadline) {
			t.Fatal("task never polled")
		}
		time.Sleep(time.Millisecond)
	}
	wakerSlot.Load().(api.Waker).Wake()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := jh.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != "woken" || polls.Load() != 2 {
		t.Fatalf("res=%v polls=%d", res, polls.Load())
	}
}

func TestExecutor_WakeIsIdempotentAndSafeAfterCompletion(t *testing.T) {
	e := New(1)
	defer e.Close()

	jh, err := e.Spawn(Ready(nil))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := jh.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	w := e.MakeWaker(jh.ID())
	for i := 0; i < 10; i++ {
		w.Wake() // must be a no-op, never a panic or a revival
	}
	if e.Live() != 0 {
		t.Fatalf("live = %d after completion", e.Live())
	}
}

func TestExecutor_CancelCooperative(t *testing.T) {
	e := New(2)
	defer e.Close()

	cleaned := atomic.Bool{}
	jh, err := e.Spawn(FutureFunc(func(cx *Context) (any, bool, error) {
		if cx.Cancelled() {
			cleaned.Store(true)
			return nil, true, api.ErrTaskCancelled
		}
		// Park until cancellation; the cancel wake re-polls us.
		_ = cx.Waker()
		return nil, false, nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Give the task a chance to park.
	time.Sleep(10 * time.Millisecond)
	e.Cancel(jh.ID())
	e.Cancel(jh.ID()) // idempotent

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, werr := jh.Wait(ctx)
	if !errors.Is(werr, api.ErrTaskCancelled) {
		t.Fatalf("outcome = %v, want ErrTaskCancelled", werr)
	}
	if !cleaned.Load() {
		t.Fatal("future never observed cancellation")
	}

	e.Cancel(jh.ID()) // after completion: no-op, never an error or panic
}

func TestExecutor_CancelOfStubbornFutureForcesOutcome(t *testing.T) {
	e := New(1)
	defer e.Close()

	// A future that ignores cancellation and keeps suspending.
	jh, err := e.Spawn(FutureFunc(func(cx *Context) (any, bool, error) {
		_ = cx.Waker()
		return nil, false, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	e.Cancel(jh.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, werr := jh.Wait(ctx)
	if !errors.Is(werr, api.ErrTaskCancelled) {
		t.Fatalf("outcome = %v, want ErrTaskCancelled", werr)
	}
}

func TestExecutor_PanicIsIsolated(t *testing.T) {
	e := New(2)
	defer e.Close()

	bad, err := e.Spawn(FutureFunc(func(*Context) (any, bool, error) {
		panic("boom")
	}))
	if err != nil {
		t.Fatal(err)
	}
	good, err := e.Spawn(Ready("fine"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, berr := bad.Wait(ctx)
	var tf *api.TaskFailure
	if !errors.As(berr, &tf) || tf.Panic != "boom" {
		t.Fatalf("bad outcome = %v, want TaskFailure(boom)", berr)
	}
	res, gerr := good.Wait(ctx)
	if gerr != nil || res != "fine" {
		t.Fatalf("sibling affected: res=%v err=%v", res, gerr)
	}
}

func TestExecutor_AwaitTaskFromTask(t *testing.T) {
	e := New(2)
	defer e.Close()

	inner, err := e.Spawn(Ready(7))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.BlockOn(inner.Future())
	if err != nil {
		t.Fatal(err)
	}
	if res != 7 {
		t.Fatalf("res = %v, want 7", res)
	}
}

func TestExecutor_CloseSettlesPendingTasks(t *testing.T) {
	e := New(1)

	jh, err := e.Spawn(FutureFunc(func(cx *Context) (any, bool, error) {
		_ = cx.Waker()
		return nil, false, nil // parks forever
	}))
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	e.Close()
	e.Close() // idempotent

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, werr := jh.Wait(ctx)
	if !errors.Is(werr, api.ErrExecutorClosed) {
		t.Fatalf("outcome = %v, want ErrExecutorClosed", werr)
	}

	if _, err := e.Spawn(Ready(1)); !errors.Is(err, api.ErrExecutorClosed) {
		t.Fatalf("spawn after close = %v", err)
	}
}

func TestExecutor_ManyTasksAcrossWorkers(t *testing.T) {
	e := New(4)
	defer e.Close()

	const n = 500
	var sum atomic.Int64
	handles := make([]*JoinHandle, 0, n)
	for i := 0; i < n; i++ {
		i := i
		jh, err := e.Spawn(FutureFunc(func(*Context) (any, bool, error) {
			sum.Add(int64(i))
			return nil, true, nil
		}))
		if err != nil {
			t.Fatal(err)
		}
		handles = append(handles, jh)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, jh := range handles {
		if _, err := jh.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if sum.Load() != n*(n-1)/2 {
		t.Fatalf("sum = %d", sum.Load())
	}
	if e.Live() != 0 {
		t.Fatalf("live = %d, want 0", e.Live())
	}
}
