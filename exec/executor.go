package exec

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleetline/agvctl/emit"
)

// popTimeout bounds how long a spinner blocks in Queue.PopWait before
// re-checking ctx.Done(); it is what lets spinners exit promptly on
// shutdown without a separate signalling channel (§9).
const popTimeout = 200 * time.Millisecond

// PanicHandler is invoked when a handler callable panics. The scheduler
// wraps it as a protocol-level FATAL "Internal Error" and aborts the
// order (§7); this package only reports the recovered value; it is the
// caller's responsibility to actually abort.
type PanicHandler func(recovered interface{})

// Executor runs a configurable pool of spinner threads draining a Queue
// (§4.6, §5). It is the systems-language realization of the original's
// "single blocking MPMC queue of zero-argument callables... one or more
// spinner threads dequeue and execute."
type Executor struct {
	queue      *Queue
	spinners   int
	metrics    *Metrics
	emitter    emit.Emitter
	onPanic    PanicHandler
}

// New returns an Executor with the given queue capacity and spinner count.
func New(queueCapacity, spinners int, metrics *Metrics, emitter emit.Emitter, onPanic PanicHandler) *Executor {
	if spinners < 1 {
		spinners = 1
	}
	return &Executor{
		queue:    NewQueue(queueCapacity),
		spinners: spinners,
		metrics:  metrics,
		emitter:  emitter,
		onPanic:  onPanic,
	}
}

// Submit enqueues a handler-bound callable, blocking until there is room
// or ctx is done.
func (e *Executor) Submit(ctx context.Context, fn func()) error {
	if e.metrics != nil {
		e.metrics.QueueDepth.Set(float64(e.queue.Len()))
	}
	return e.queue.Push(ctx, fn)
}

// Run drives the spinner pool until ctx is cancelled, then drains
// whatever remains queued before returning. It uses
// golang.org/x/sync/errgroup the same way the teacher's engine drives its
// node-execution goroutines, one goroutine per spinner.
func (e *Executor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.spinners; i++ {
		g.Go(func() error {
			e.spin(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (e *Executor) spin(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drainRemaining()
			return
		default:
		}

		fn, ok := e.queue.PopWait(popTimeout)
		if !ok {
			continue
		}
		e.runOne(fn)
	}
}

// drainRemaining runs whatever is still queued after shutdown is
// signalled, honoring §5's "spinner threads then exit when the queue is
// empty and the shutdown flag is set."
func (e *Executor) drainRemaining() {
	for {
		select {
		case fn := <-e.queue.ch:
			e.runOne(fn)
		default:
			return
		}
	}
}

func (e *Executor) runOne(fn func()) {
	if e.metrics != nil {
		e.metrics.SpinnerBusy.Inc()
		defer e.metrics.SpinnerBusy.Dec()
	}
	defer func() {
		if r := recover(); r != nil {
			if e.metrics != nil {
				e.metrics.TaskErrors.Inc()
			}
			if e.emitter != nil {
				e.emitter.Emit(emit.Event{Msg: "handler_panic", Meta: map[string]interface{}{"error": fmt.Sprintf("%v", r)}})
			}
			if e.onPanic != nil {
				e.onPanic(r)
			}
		}
	}()
	fn()
	if e.metrics != nil {
		e.metrics.TasksProcessed.Inc()
		e.metrics.QueueDepth.Set(float64(e.queue.Len()))
	}
}

// Shutdown closes the queue; in-flight and already-queued callables still
// run to completion via drainRemaining.
func (e *Executor) Shutdown() { e.queue.Close() }
