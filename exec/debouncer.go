package exec

import (
	"context"
	"sync"
	"time"
)

// Urgency governs how quickly the debouncer must publish after a
// request_update call (§4.6).
type Urgency int

const (
	Low Urgency = iota
	Medium
	High
	Immediate
)

func (u Urgency) String() string {
	switch u {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Immediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// debounceWindow returns how long to wait before publishing once urgency
// first arrives, coalescing any co-arriving requests of equal or lower
// urgency (§4.6: "on HIGH, it coalesces any co-arriving requests and
// publishes with a short debounce; on MEDIUM, a longer debounce").
func (u Urgency) debounceWindow() time.Duration {
	switch u {
	case High:
		return 50 * time.Millisecond
	case Medium:
		return 500 * time.Millisecond
	default:
		return 0
	}
}

// Debouncer maintains the state-update timer of §4.6: a default period
// tick plus urgency-driven early publishes.
type Debouncer struct {
	mu      sync.Mutex
	period  time.Duration
	pending Urgency
	hasWork bool
	timer   *time.Timer

	publish func(Urgency)
	metrics *Metrics
}

// NewDebouncer returns a Debouncer that calls publish at least once every
// period, and earlier when RequestUpdate raises the urgency.
func NewDebouncer(period time.Duration, metrics *Metrics, publish func(Urgency)) *Debouncer {
	return &Debouncer{period: period, publish: publish, metrics: metrics}
}

// RequestUpdate records a pending publish at the given urgency. IMMEDIATE
// publishes synchronously before returning; all other urgencies are
// applied asynchronously by Run's timer loop.
func (d *Debouncer) RequestUpdate(urgency Urgency) {
	d.mu.Lock()
	if urgency == Immediate {
		d.mu.Unlock()
		d.doPublish(Immediate)
		return
	}
	if urgency > d.pending || !d.hasWork {
		d.pending = urgency
	}
	d.hasWork = true
	window := d.pending.debounceWindow()
	d.rearm(window)
	d.mu.Unlock()
}

// rearm must be called with mu held.
func (d *Debouncer) rearm(window time.Duration) {
	if window == 0 {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(window, func() {
		d.mu.Lock()
		if !d.hasWork {
			d.mu.Unlock()
			return
		}
		urgency := d.pending
		d.hasWork = false
		d.pending = Low
		d.mu.Unlock()
		d.doPublish(urgency)
	})
}

func (d *Debouncer) doPublish(urgency Urgency) {
	start := time.Now()
	d.publish(urgency)
	if d.metrics != nil {
		d.metrics.StatePublishes.WithLabelValues(urgency.String()).Inc()
		d.metrics.PublishLatency.Observe(time.Since(start).Seconds())
	}
}

// Run drives the periodic LOW-urgency tick until ctx is done: every
// period it publishes unconditionally, and any request still pending at
// that moment is folded into this publish (§4.6: "on LOW, only at the
// periodic tick").
func (d *Debouncer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			d.hasWork = false
			d.pending = Low
			d.mu.Unlock()
			d.doPublish(Low)
		}
	}
}
