// Package task implements the task manager family: the lifecycle subnet
// shared by every task variant (§4.2), and the four concrete
// specializations (action, step-based navigation, continuous navigation,
// pause/resume) built on top of it (§4.4, §4.5).
package task

import (
	"fmt"

	"github.com/fleetline/agvctl/pnet"
)

// Place suffixes, appended to a task's id-derived prefix to build unique
// pnet.PlaceIDs. Kept unexported; callers address places through Manager's
// methods and observable place accessors, never by raw id.
const (
	placeReady                = "ready"
	placeEnabled              = "enabled"
	placeDisabled             = "disabled"
	placeInitializing         = "initializing"
	placeRunning              = "running"
	placePaused               = "paused"
	placeAnyFailed            = "any_failed"
	placeFinished             = "finished"
	placeFailed               = "failed"
	placeDone                 = "done"
	placePreDone              = "pre_done"
	placeEntered              = "entered"
	placeExited               = "exited"
	placeUnIntercepted        = "un_intercepted"
	placeIntercepted          = "intercepted"
	placeInterceptedParallel  = "intercepted_parallel"
	placeInterceptedSequential = "intercepted_sequential"
	placeInterceptingBegin    = "intercepting_begin"
	placeInterceptingEnd      = "intercepting_end"
	placeInterceptSync        = "intercept_sync"
)

// Hooks is implemented by each task variant. Hooks are invoked
// synchronously from within the firing pnet.Transition's observer — per
// §4.1's contract they must not fire transitions on the owning net
// themselves; they call into the task's handler, whose acknowledgements
// are pushed through the executor queue (§4.6), and return promptly.
type Hooks interface {
	TaskInitialize()
	TaskRunning()
	TaskPaused()
	TaskFinished()
	TaskFailed()
}

// Manager owns one task's lifecycle subnet: the places and transitions of
// §4.2, spliced onto a shared *pnet.Net under a unique place-id prefix.
type Manager struct {
	id     string
	net    *pnet.Net
	hooks  Hooks
	places map[string]*pnet.Place
	trans  map[string]*pnet.Transition
}

// pid builds this task's place id for the given suffix.
func (m *Manager) pid(suffix string) pnet.PlaceID {
	return pnet.PlaceID(m.id + ":" + suffix)
}

func (m *Manager) tid(suffix string) pnet.TransitionID {
	return pnet.TransitionID(m.id + ":" + suffix)
}

// NewManager builds a task's lifecycle subnet on net under the given
// unique id (e.g. "action:A3", "stepnav:7"), wires hooks to the places
// that hold the observable triggers (§4.2's hook table), and returns the
// Manager. The initial marking is enabled=1, un_intercepted=1, everything
// else 0; ready is left at 0 for the caller (the net manager) to fill via
// a bridging transition from the predecessor in the order plan.
func NewManager(net *pnet.Net, id string, hooks Hooks) (*Manager, error) {
	m := &Manager{
		id:     id,
		net:    net,
		hooks:  hooks,
		places: make(map[string]*pnet.Place),
		trans:  make(map[string]*pnet.Transition),
	}

	initial := map[string]uint64{
		placeEnabled:       1,
		placeUnIntercepted: 1,
	}
	for _, suffix := range []string{
		placeReady, placeEnabled, placeDisabled, placeInitializing, placeRunning,
		placePaused, placeAnyFailed, placeFinished, placeFailed, placeDone,
		placePreDone, placeEntered, placeExited, placeUnIntercepted, placeIntercepted,
		placeInterceptedParallel, placeInterceptedSequential, placeInterceptingBegin,
		placeInterceptingEnd, placeInterceptSync,
	} {
		p, err := net.AddPlace(m.pid(suffix), initial[suffix])
		if err != nil {
			return nil, fmt.Errorf("task: %s: %w", id, err)
		}
		m.places[suffix] = p
	}

	if err := m.wireTransitions(); err != nil {
		return nil, err
	}
	m.wireHooks()
	return m, nil
}

func (m *Manager) addTransition(suffix string, ingoing, outgoing []string) error {
	toArcs := func(suffixes []string) []pnet.Arc {
		arcs := make([]pnet.Arc, len(suffixes))
		for i, s := range suffixes {
			arcs[i] = pnet.Arc{Place: m.pid(s), Weight: 1}
		}
		return arcs
	}
	tr, err := m.net.AddTransition(pnet.TransitionDef{
		ID:       m.tid(suffix),
		Ingoing:  toArcs(ingoing),
		Outgoing: toArcs(outgoing),
	})
	if err != nil {
		return fmt.Errorf("task: %s: %w", m.id, err)
	}
	m.trans[suffix] = tr
	return nil
}

func (m *Manager) wireTransitions() error {
	type def struct {
		name     string
		ingoing  []string
		outgoing []string
	}
	defs := []def{
		{"start", []string{placeReady, placeEnabled}, []string{placeInitializing, placeEntered}},
		{"initializing_fail", []string{placeInitializing}, []string{placeAnyFailed}},
		{"started", []string{placeInitializing}, []string{placeRunning}},
		{"pause", []string{placeRunning}, []string{placePaused}},
		{"resume", []string{placePaused}, []string{placeRunning}},
		{"running_fail", []string{placeRunning}, []string{placeAnyFailed}},
		{"paused_fail", []string{placePaused}, []string{placeAnyFailed}},
		{"finish", []string{placeRunning}, []string{placePreDone, placeFinished, placeExited}},
		{"fail", []string{placeAnyFailed}, []string{placePreDone, placeFailed, placeExited}},
		{"disable", []string{placeEnabled}, []string{placeDisabled}},
		{"skip", []string{placeReady, placeDisabled}, []string{placeAnyFailed}},
		{"complete", []string{placePreDone, placeUnIntercepted}, []string{placeDone}},
		{"intercept", []string{placeUnIntercepted}, []string{placeIntercepted}},
		{"intercept_sequential", []string{placeIntercepted}, []string{placeInterceptedSequential}},
		{"intercept_parallel", []string{placeIntercepted}, []string{placeInterceptedParallel}},
		{"intercept_sequential_begin", []string{placeInterceptedSequential, placePreDone}, []string{placeInterceptingBegin, placeInterceptSync}},
		{"intercept_parallel_begin", []string{placeInterceptedParallel}, []string{placeInterceptingBegin}},
		{"intercept_parallel_sync", []string{placeInterceptingBegin, placePreDone}, []string{placeInterceptingBegin, placeInterceptSync}},
		{"intercept_complete", []string{placeInterceptingEnd, placeInterceptSync}, []string{placeDone}},
	}
	for _, d := range defs {
		if err := m.addTransition(d.name, d.ingoing, d.outgoing); err != nil {
			return err
		}
	}
	// Only the transitions that fire purely from internal PN preconditions
	// are auto-fire. started/pause/resume/finish/fail-family transitions
	// represent handler acknowledgements and are fired explicitly by the
	// Manager methods below; intercept/intercept_sequential/intercept_parallel
	// are fired explicitly by the net manager dispatching an interception.
	for _, name := range []string{
		"start", "skip", "complete", "fail", "intercept_sequential_begin",
		"intercept_parallel_begin", "intercept_parallel_sync", "intercept_complete",
	} {
		m.trans[name].AutoFire()
	}
	return nil
}

// wireHooks splices observers onto the places that drive §4.2's hook
// table: task_initialize fires when initializing becomes 1, and so on.
func (m *Manager) wireHooks() {
	watch := func(suffix string, onBecameOne func()) {
		m.places[suffix].OnChange(func(p *pnet.Place, prior uint64) {
			if prior == 0 && p.Tokens() == 1 {
				onBecameOne()
			}
		})
	}
	watch(placeInitializing, m.hooks.TaskInitialize)
	watch(placeRunning, m.hooks.TaskRunning)
	watch(placePaused, m.hooks.TaskPaused)
	watch(placeFinished, m.hooks.TaskFinished)
	watch(placeFailed, m.hooks.TaskFailed)
}

// ID returns the task's unique id.
func (m *Manager) ID() string { return m.id }

// Ready returns the public ready place, which the enclosing composer
// credits via a bridging transition to start this task.
func (m *Manager) Ready() *pnet.Place { return m.places[placeReady] }

// Done, Running, FinishedPlace, FailedPlace, Exited, InterceptingBegin,
// InterceptingEnd return the remaining public observable places (§4.2).
func (m *Manager) Done() *pnet.Place              { return m.places[placeDone] }
func (m *Manager) Running() *pnet.Place           { return m.places[placeRunning] }
func (m *Manager) FinishedPlace() *pnet.Place    { return m.places[placeFinished] }
func (m *Manager) FailedPlace() *pnet.Place      { return m.places[placeFailed] }
func (m *Manager) Exited() *pnet.Place           { return m.places[placeExited] }
func (m *Manager) InterceptingBegin() *pnet.Place { return m.places[placeInterceptingBegin] }
func (m *Manager) InterceptingEnd() *pnet.Place   { return m.places[placeInterceptingEnd] }

// InterceptSync exposes the intercept_sync place, credited entirely
// internally by this subnet: in the sequential case alongside
// intercepting_begin once pre_done is reached, in the parallel case by
// intercept_parallel_sync once this task reaches pre_done on its own (the
// "later" half of "intercepted_parallel -> intercepting_begin and later ->
// intercept_sync", §4.2). Exposed for tests; the net manager never wires
// to it directly — it bridges the interceptor's completion to
// InterceptingEnd instead.
func (m *Manager) InterceptSync() *pnet.Place { return m.places[placeInterceptSync] }

// Started attempts the initializing->running transition.
func (m *Manager) Started() bool { return m.trans["started"].DeepFire() }

// Paused attempts the running->paused transition.
func (m *Manager) Paused() bool { return m.trans["pause"].DeepFire() }

// Resumed attempts the paused->running transition.
func (m *Manager) Resumed() bool { return m.trans["resume"].DeepFire() }

// MarkFinished attempts the running->pre_done+finished+exited transition.
func (m *Manager) MarkFinished() bool { return m.trans["finish"].DeepFire() }

// Failed attempts the matching fail transition. It is tolerant: it tries
// initializing_fail, running_fail, and paused_fail in turn, since the spec
// allows failure from any of those three markings.
func (m *Manager) Failed() bool {
	for _, name := range []string{"initializing_fail", "running_fail", "paused_fail"} {
		if m.trans[name].DeepFire() {
			return true
		}
	}
	return false
}

// IsActive reports whether the task currently holds a token in
// initializing, running, or paused — i.e. it has entered but not yet
// reached pre_done. Instant-action interception (§4.5) uses this to limit
// "every currently active action" to tasks actually in flight, rather than
// every task manager the order has ever created (most of which are still
// sitting at ready=0, waiting their turn, or have already finished).
func (m *Manager) IsActive() bool {
	return m.places[placeInitializing].Tokens() > 0 ||
		m.places[placeRunning].Tokens() > 0 ||
		m.places[placePaused].Tokens() > 0
}

// Cancel fires disable; valid only before entered. Returns false if the
// task has already entered.
func (m *Manager) Cancel() bool {
	if m.places[placeEntered].Tokens() > 0 {
		return false
	}
	return m.trans["disable"].DeepFire()
}

// Intercept, InterceptSequential, InterceptParallel toggle the
// interception fork (§4.2, §4.5).
func (m *Manager) Intercept() bool           { return m.trans["intercept"].DeepFire() }
func (m *Manager) InterceptSequential() bool { return m.trans["intercept_sequential"].DeepFire() }
func (m *Manager) InterceptParallel() bool   { return m.trans["intercept_parallel"].DeepFire() }

// BeginInterceptSequential drives the intercepted_sequential + pre_done ->
// intercepting_begin + intercept_sync transition once this task reaches
// pre_done, letting an interceptor splice itself in sequentially.
func (m *Manager) BeginInterceptSequential() bool {
	return m.trans["intercept_sequential_begin"].DeepFire()
}

// BeginInterceptParallel drives intercepted_parallel -> intercepting_begin
// immediately (no pre_done wait, since the interceptor runs alongside).
func (m *Manager) BeginInterceptParallel() bool {
	return m.trans["intercept_parallel_begin"].DeepFire()
}

// Start fires ready+enabled -> initializing+entered; called by the
// bridging transition the enclosing composer wires onto Ready(), or
// directly by tests.
func (m *Manager) Start() bool { return m.trans["start"].DeepFire() }

// Skip fires ready+disabled -> any_failed, the cancel-before-start path.
func (m *Manager) Skip() bool { return m.trans["skip"].DeepFire() }
