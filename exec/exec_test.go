package exec

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueuePushPopWait(t *testing.T) {
	q := NewQueue(2)
	ran := make(chan struct{}, 1)
	if err := q.TryPush(func() { ran <- struct{}{} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := q.PopWait(time.Second)
	if !ok {
		t.Fatalf("expected a callable to pop")
	}
	fn()
	select {
	case <-ran:
	default:
		t.Fatalf("expected callable to have run")
	}
}

func TestQueuePopWaitTimesOut(t *testing.T) {
	q := NewQueue(1)
	_, ok := q.PopWait(10 * time.Millisecond)
	if ok {
		t.Fatalf("expected timeout on empty queue")
	}
}

func TestQueueTryPushFullReturnsError(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryPush(func() {}); err != nil {
		t.Fatalf("unexpected error on first push: %v", err)
	}
	if err := q.TryPush(func() {}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestExecutorRunsSubmittedWork(t *testing.T) {
	e := New(8, 2, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var count int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Run(ctx)
	}()

	for i := 0; i < 5; i++ {
		if err := e.Submit(context.Background(), func() { atomic.AddInt64(&count, 1) }); err != nil {
			t.Fatalf("unexpected error submitting: %v", err)
		}
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt64(&count) < 5 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for submitted work, got count=%d", atomic.LoadInt64(&count))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	wg.Wait()
}

func TestExecutorRecoversPanics(t *testing.T) {
	var recovered interface{}
	var mu sync.Mutex
	e := New(4, 1, nil, nil, func(r interface{}) {
		mu.Lock()
		recovered = r
		mu.Unlock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Run(ctx)
	}()

	e.Submit(context.Background(), func() { panic("boom") })

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		got := recovered
		mu.Unlock()
		if got != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for panic handler to be called")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	wg.Wait()
}

func TestDebouncerImmediatePublishesSynchronously(t *testing.T) {
	var count int64
	d := NewDebouncer(time.Hour, nil, func(u Urgency) { atomic.AddInt64(&count, 1) })
	d.RequestUpdate(Immediate)
	if atomic.LoadInt64(&count) != 1 {
		t.Fatalf("expected synchronous publish, got count=%d", count)
	}
}

func TestDebouncerHighUrgencyDebounces(t *testing.T) {
	var count int64
	d := NewDebouncer(time.Hour, nil, func(u Urgency) { atomic.AddInt64(&count, 1) })
	d.RequestUpdate(High)
	d.RequestUpdate(High)
	time.Sleep(150 * time.Millisecond)
	if atomic.LoadInt64(&count) != 1 {
		t.Fatalf("expected exactly one coalesced publish, got %d", count)
	}
}
