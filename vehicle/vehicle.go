// Package vehicle wires the rest of the library into one runnable unit:
// canonical state, the net manager, the executor/debouncer pair, the
// transport, and the optional audit/diagnostics server. It is the single
// place that owns every other component's lifetime, mirroring how the
// teacher's own top-level engine owns its store, scheduler, and emitter.
package vehicle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetline/agvctl/audit"
	"github.com/fleetline/agvctl/config"
	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/exec"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/httpserver"
	"github.com/fleetline/agvctl/netmgr"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/transport"
	"github.com/fleetline/agvctl/validate"
	"github.com/fleetline/agvctl/wire"
)

// Error is the shape every fallible vehicle-level operation returns on
// failure, carrying a stable code alongside the message so a caller can
// branch on Code without parsing text.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Options configures a Vehicle. Config and Transport are required;
// everything else has a usable zero value.
type Options struct {
	Config    config.Config
	Transport transport.Transport

	Audit      audit.Store           // optional; nil disables diagnostic persistence
	Emitter    emit.Emitter          // optional; defaults to emit.NewNullEmitter()
	Registerer *prometheus.Registry  // optional; defaults to a fresh registry
	HTTPAddr   string                // optional; empty disables the diagnostics server

	NavMode              netmgr.NavMode
	ActionFactory        handler.ActionFactory
	StepNavFactory       handler.StepNavFactory
	ContinuousNavFactory handler.ContinuousNavFactory
	PauseResumeFactory   handler.PauseResumeFactory
	Odometry             handler.Odometry
}

// Vehicle is one fully wired vehicle: state store, net manager, executor,
// debouncer, transport, and optional diagnostics.
type Vehicle struct {
	cfg       config.Config
	store     *state.Store
	net       *netmgr.Manager
	executor  *exec.Executor
	debouncer *exec.Debouncer
	metrics   *exec.Metrics
	emitter   emit.Emitter
	transport transport.Transport
	audit     audit.Store
	http      *httpserver.Server
	vdesc     validate.AGVDescription

	mu      sync.Mutex
	lastErr error
}

// New assembles a Vehicle from opts. It does not connect to the broker or
// start any goroutines; call Start for that.
func New(opts Options) (*Vehicle, error) {
	if opts.Transport == nil {
		return nil, &Error{Code: "MISSING_TRANSPORT", Message: "vehicle: Options.Transport is required"}
	}

	emitter := opts.Emitter
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	if opts.Audit != nil {
		emitter = &auditingEmitter{inner: emitter, store: opts.Audit}
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := exec.NewMetrics(reg)

	store := state.New()

	onPanic := func(recovered interface{}) {
		emitter.Emit(emit.Event{
			Msg:  "handler_panic",
			Meta: map[string]interface{}{"recovered": fmt.Sprintf("%v", recovered)},
		})
	}
	executor := exec.New(opts.Config.QueueCapacity, opts.Config.SpinnerCount, metrics, emitter, onPanic)

	v := &Vehicle{
		cfg:      opts.Config,
		store:    store,
		executor: executor,
		metrics:  metrics,
		emitter:  emitter,
		transport: opts.Transport,
		audit:    opts.Audit,
		vdesc:    buildValidateDescription(opts.Config.AGV),
	}

	v.debouncer = exec.NewDebouncer(opts.Config.StateUpdatePeriod, metrics, v.publishState)

	net, err := netmgr.New(store, executor, emitter, v.debouncer, netmgr.Config{
		NavMode:              opts.NavMode,
		ActionFactory:        opts.ActionFactory,
		StepNavFactory:       opts.StepNavFactory,
		ContinuousNavFactory: opts.ContinuousNavFactory,
		PauseResumeFactory:   opts.PauseResumeFactory,
		Odometry:             opts.Odometry,
	})
	if err != nil {
		return nil, fmt.Errorf("vehicle: build net manager: %w", err)
	}
	v.net = net

	opts.Transport.SetConsumer(v)

	if opts.HTTPAddr != "" {
		v.http = httpserver.New(opts.HTTPAddr, reg, v.health)
	}

	return v, nil
}

// health reports the last error observed from the transport/executor, for
// the diagnostics server's /healthz endpoint.
func (v *Vehicle) health() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

func (v *Vehicle) setLastErr(err error) {
	v.mu.Lock()
	v.lastErr = err
	v.mu.Unlock()
}

// Start launches the executor, debouncer, transport connection, and (if
// configured) the diagnostics server, then blocks until ctx is cancelled.
// Shutdown is performed automatically before Start returns.
func (v *Vehicle) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := v.executor.Run(ctx); err != nil {
			v.setLastErr(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		v.debouncer.Run(ctx)
	}()

	if v.http != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := v.http.Run(ctx); err != nil && ctx.Err() == nil {
				v.setLastErr(err)
			}
		}()
	}

	if err := v.transport.Connect(); err != nil {
		v.setLastErr(err)
		return fmt.Errorf("vehicle: connect transport: %w", err)
	}
	if err := v.publishConnection(wire.ConnectionOnline); err != nil {
		v.emitter.Emit(emit.Event{Msg: "connection_publish_failed", Meta: map[string]interface{}{"error": err.Error()}})
	}

	if passive, ok := v.transport.(transport.Passive); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.spinLoop(ctx, passive)
		}()
	}

	<-ctx.Done()
	_ = v.Shutdown(context.Background())
	wg.Wait()
	return ctx.Err()
}

// spinLoop drives a Passive transport's SpinOnce at a short fixed
// interval until ctx is cancelled — the poll-loop counterpart of the
// original library's ConnectorPassive, which the host application was
// expected to tick from its own main loop.
func (v *Vehicle) spinLoop(ctx context.Context, p transport.Passive) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.SpinOnce()
		}
	}
}

// Shutdown cancels every pending task, publishes a retained OFFLINE
// connection document, and tears down the broker connection. Safe to call
// more than once.
func (v *Vehicle) Shutdown(ctx context.Context) error {
	if err := v.net.Shutdown(ctx); err != nil {
		return err
	}
	v.executor.Shutdown()
	if err := v.publishConnection(wire.ConnectionOffline); err != nil {
		v.emitter.Emit(emit.Event{Msg: "connection_publish_failed", Meta: map[string]interface{}{"error": err.Error()}})
	}
	if err := v.transport.Disconnect(); err != nil {
		return err
	}
	if v.audit != nil {
		return v.audit.Close()
	}
	return nil
}

func (v *Vehicle) publishConnection(cs wire.ConnectionState) error {
	conn := wire.Connection{
		Header:          v.stampHeader("connection"),
		ConnectionState: cs,
	}
	return v.transport.QueueConnection(conn)
}

// stampHeader builds a Header for an outbound topic with a fresh
// per-topic monotonic sequence number (§6).
func (v *Vehicle) stampHeader(topic string) wire.Header {
	return wire.Header{
		HeaderID:     v.store.NextHeaderSeq(topic),
		Timestamp:    time.Now().UTC(),
		Version:      v.cfg.Broker.Version,
		Manufacturer: v.cfg.AGV.Manufacturer,
		SerialNumber: v.cfg.AGV.SerialNumber,
	}
}
