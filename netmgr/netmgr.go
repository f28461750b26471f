// Package netmgr implements the net manager (order interpreter): order
// graph to Petri-net translation (§4.3), navigation-mode dispatch (§4.4),
// instant-action interception (§4.5), and cancellation.
package netmgr

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/exec"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/pnet"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/task"
	"github.com/fleetline/agvctl/wire"
)

// NavMode selects which of the two mutually exclusive navigation
// subsystems (§4.4) a Manager drives.
type NavMode int

const (
	NavStepBased NavMode = iota
	NavContinuous
)

// Config bundles the handler factories and navigation mode a Manager is
// built with, mirroring the configuration knobs of §6.
type Config struct {
	NavMode              NavMode
	ActionFactory        handler.ActionFactory
	StepNavFactory       handler.StepNavFactory
	ContinuousNavFactory handler.ContinuousNavFactory
	PauseResumeFactory   handler.PauseResumeFactory
	Odometry             handler.Odometry
}

// Manager owns the Petri net and every task manager for the current
// order, plus instant-action interception. It borrows the state store by
// reference (§3 ownership rules).
type Manager struct {
	net       *pnet.Net
	store     *state.Store
	executor  *exec.Executor
	emitter   emit.Emitter
	debouncer *exec.Debouncer
	cfg       Config

	tail        *pnet.Place
	stepCounter int

	actions map[string]*task.ActionManager
	contRun *task.ContinuousNavRun

	// tasks is every task manager this order has ever created (actions,
	// drive steps, pause/resume), used by CancelOrder and abortOrder to cancel/fail the
	// whole order when a single task's own failure must take everything
	// else down with it (§4.4, §7), not just the tracked action set.
	tasks []*task.Manager

	// runningCounts[rank] counts active (running or paused) tasks of that blocking
	// rank (wire.BlockingType.rank()); kept current by trackCeiling
	// observers so instant-action interception can read the ceiling
	// without scanning every task.
	runningCounts [3]int

	orderID string

	// maxTranslatedSeq is the highest node/edge sequence id already
	// walked into the net by a prior InstallOrder call, or -1 before the
	// first order. An order update's node list repeats the stitch node at
	// this sequence id (§3's stitch invariant); InstallOrder uses this to
	// walk only the uninterpreted suffix (§4.3) instead of re-translating
	// already-running base elements into duplicate task managers.
	maxTranslatedSeq int64
}

// New builds an empty net manager with a fresh Petri net and an initial
// tail place holding one token, ready to receive InstallOrder.
func New(store *state.Store, executor *exec.Executor, emitter emit.Emitter, debouncer *exec.Debouncer, cfg Config) (*Manager, error) {
	net := pnet.New()
	tail, err := net.AddPlace("tail:0", 1)
	if err != nil {
		return nil, err
	}
	return &Manager{
		net:              net,
		store:            store,
		executor:         executor,
		emitter:          emitter,
		debouncer:        debouncer,
		cfg:              cfg,
		tail:             tail,
		actions:          make(map[string]*task.ActionManager),
		maxTranslatedSeq: -1,
	}, nil
}

// taskID derives a short, stable, collision-resistant task id from an
// action or drive step's natural key, using xxhash the way the teacher's
// scheduler derives deterministic work-item ordering keys (graph/
// scheduler.go's ComputeOrderKey, there via SHA-256 for security-sensitive
// ordering; here via the much cheaper xxhash since task ids only need to
// be unique within one order's net, not cryptographically unguessable).
func taskID(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// enqueue submits fn onto the executor queue, the only place net-mutating
// work (including transition firing from within a handler acknowledgement
// path) is allowed to run from (§5).
func (m *Manager) enqueue(fn func()) {
	if m.executor == nil {
		fn()
		return
	}
	_ = m.executor.Submit(context.Background(), fn)
}

func (m *Manager) requestUpdate(u exec.Urgency) {
	if m.debouncer != nil {
		m.debouncer.RequestUpdate(u)
	}
}

// InstallOrder translates the base (released) portion of nodes/edges into
// the Petri net per §4.3 and installs the whole graph (base and horizon)
// into canonical state. Validation must already have happened; InstallOrder
// assumes the order is acceptable.
//
// Only the released prefix is walked into the net — horizon nodes/edges
// are recorded in canonical state but stay un-spliced until a later order
// update releases (promotes) them, per §3's "horizon cannot be traversed
// until promoted".
func (m *Manager) InstallOrder(order wire.Order) error {
	m.orderID = order.OrderID
	m.store.InstallOrder(order.OrderID, order.OrderUpdateID, order.ZoneSetID, order.Nodes, order.Edges)
	m.store.ClearErrors()

	allNodes := append([]wire.Node(nil), order.Nodes...)
	sort.Slice(allNodes, func(i, j int) bool { return allNodes[i].SequenceID < allNodes[j].SequenceID })
	edgeByStart := make(map[string]wire.Edge)
	for _, e := range order.Edges {
		edgeByStart[e.StartNodeID] = e
	}

	isAppend := m.maxTranslatedSeq >= 0
	startSeq := m.maxTranslatedSeq
	maxSeq := startSeq

	var nodes []wire.Node
	for _, n := range allNodes {
		if n.Released {
			nodes = append(nodes, n)
		}
	}

	var deltaNodes []wire.Node
	var deltaEdges []wire.Edge
	for i, n := range nodes {
		if int64(n.SequenceID) > startSeq {
			if err := m.emitNodeActions(n); err != nil {
				return err
			}
			deltaNodes = append(deltaNodes, n)
		}
		if int64(n.SequenceID) > maxSeq {
			maxSeq = int64(n.SequenceID)
		}
		if i+1 < len(nodes) {
			next := nodes[i+1]
			// Only drive a step whose far end is new; a pair of nodes both
			// already translated by a prior InstallOrder call was already
			// spliced into the net and must not be re-emitted.
			if int64(next.SequenceID) > startSeq {
				edge, hasEdge := edgeByStart[n.NodeID]
				if hasEdge {
					deltaEdges = append(deltaEdges, edge)
				}
				if err := m.driveStep(n, next, edge, hasEdge); err != nil {
					return err
				}
			}
		}
	}
	m.maxTranslatedSeq = maxSeq

	// §4.4: "when the order is later extended while the handler is live,
	// the manager calls handler.base_increased(...)". Only fires on an
	// append (not the order's first install, which already gets the delta
	// via handler.Start), and only while a continuous-navigation run is
	// actually live to receive it.
	if isAppend && m.contRun != nil && !m.contRun.Finalized() && (len(deltaNodes) > 0 || len(deltaEdges) > 0) {
		m.contRun.BaseIncreased(deltaNodes, deltaEdges)
	}

	var horizonNodes []wire.Node
	var horizonEdges []wire.Edge
	for _, n := range allNodes {
		if !n.Released {
			horizonNodes = append(horizonNodes, n)
		}
	}
	for _, e := range order.Edges {
		if !e.Released {
			horizonEdges = append(horizonEdges, e)
		}
	}
	if m.contRun != nil && !m.contRun.Finalized() && (len(horizonNodes) > 0 || len(horizonEdges) > 0) {
		m.contRun.HorizonUpdated(horizonNodes, horizonEdges)
	}
	// Kick the net once after the structural edits above: every transition
	// just added is auto-fire, but AddTransition never fires anything by
	// itself — only a Tick/DeepTickCover sweep or a Manager method's
	// DeepFire does. Without this, a freshly translated order with no
	// active handler acknowledgement in flight would simply sit idle with
	// its first parallel-launch transition enabled but never fired.
	m.net.DeepTickCover()
	m.requestUpdate(exec.Medium)
	return nil
}

// emitNodeActions implements §4.3's per-node accumulator: HARD actions
// flush the accumulator and run alone synchronized both sides; SOFT/NONE
// actions append to a parallel accumulator flushed at the end of the
// node.
func (m *Manager) emitNodeActions(n wire.Node) error {
	var accumulator []taskRef
	flush := func() error {
		if len(accumulator) == 0 {
			return nil
		}
		newTail, err := m.emitParallelStep(accumulator)
		if err != nil {
			return err
		}
		m.tail = newTail
		accumulator = nil
		return nil
	}

	for _, a := range n.Actions {
		switch a.BlockingType {
		case wire.BlockingHard:
			if err := flush(); err != nil {
				return err
			}
			ref, err := m.buildActionTask(a, 0)
			if err != nil {
				return err
			}
			newTail, err := m.emitParallelStep([]taskRef{ref})
			if err != nil {
				return err
			}
			m.tail = newTail
		case wire.BlockingSoft:
			if m.contRun != nil {
				m.contRun.Finalize()
			}
			ref, err := m.buildActionTask(a, 0)
			if err != nil {
				return err
			}
			accumulator = append(accumulator, ref)
		case wire.BlockingNone:
			ref, err := m.buildActionTask(a, 0)
			if err != nil {
				return err
			}
			accumulator = append(accumulator, ref)
		}
	}
	return flush()
}

// taskRef is a uniform view over any task manager variant for the
// purposes of building parallel time steps: its ready/done places and
// whether it participates in the step's sync barrier.
type taskRef struct {
	id           string
	blockingType wire.BlockingType
	ready        *pnet.Place
	done         *pnet.Place
	sync         bool // NONE tasks are not synchronized before the next step
}

func (m *Manager) buildActionTask(a wire.Action, step int) (taskRef, error) {
	m.store.InstallInstantAction(a)
	var h handler.Action
	if m.cfg.ActionFactory != nil {
		h = m.cfg.ActionFactory(a)
	} else {
		h = noopActionHandler{m: m}
	}
	am, err := task.NewActionManager(m.net, a, h, m.store, m.emitter, m.orderID, step)
	if err != nil {
		return taskRef{}, err
	}
	m.actions[a.ActionID] = am
	m.tasks = append(m.tasks, am.Manager)
	m.trackCeiling(a.BlockingType, am.Manager)
	return taskRef{
		id:           am.ID(),
		blockingType: a.BlockingType,
		ready:        am.Ready(),
		done:         am.Done(),
		sync:         a.BlockingType != wire.BlockingNone,
	}, nil
}

// emitParallelStep builds the parallel-launch and sync transitions of
// §4.3 for one time step and returns the new tail place.
func (m *Manager) emitParallelStep(refs []taskRef) (*pnet.Place, error) {
	m.stepCounter++
	tailID := pnet.PlaceID(fmt.Sprintf("tail:%d", m.stepCounter))
	newTail, err := m.net.AddPlace(tailID, 0)
	if err != nil {
		return nil, err
	}

	launchOut := make([]pnet.Arc, 0, len(refs))
	for _, r := range refs {
		launchOut = append(launchOut, pnet.Arc{Place: r.ready.ID(), Weight: 1})
	}
	launchID := pnet.TransitionID(fmt.Sprintf("launch:%d", m.stepCounter))
	launch, err := m.net.AddTransition(pnet.TransitionDef{
		ID:       launchID,
		Ingoing:  []pnet.Arc{{Place: m.tail.ID(), Weight: 1}},
		Outgoing: launchOut,
	})
	if err != nil {
		return nil, err
	}
	launch.AutoFire()

	var syncIn []pnet.Arc
	for _, r := range refs {
		if r.sync {
			syncIn = append(syncIn, pnet.Arc{Place: r.done.ID(), Weight: 1})
		}
	}
	syncID := pnet.TransitionID(fmt.Sprintf("sync:%d", m.stepCounter))
	sync, err := m.net.AddTransition(pnet.TransitionDef{
		ID:       syncID,
		Ingoing:  syncIn,
		Outgoing: []pnet.Arc{{Place: tailID, Weight: 1}},
	})
	if err != nil {
		return nil, err
	}
	sync.AutoFire()

	return newTail, nil
}

// driveStep handles the edge + end-node drive time step between two
// consecutive nodes (§4.3's "for each edge" clause, dispatched through
// whichever navigation mode is configured, §4.4).
func (m *Manager) driveStep(from, to wire.Node, edge wire.Edge, hasEdge bool) error {
	m.stepCounter++
	step := m.stepCounter

	var edgeArg *wire.Edge
	if hasEdge {
		e := edge
		edgeArg = &e
		for _, a := range edge.Actions {
			ref, err := m.buildActionTask(a, step)
			if err != nil {
				return err
			}
			newTail, err := m.emitParallelStep([]taskRef{ref})
			if err != nil {
				return err
			}
			m.tail = newTail
		}
	}

	switch m.cfg.NavMode {
	case NavContinuous:
		return m.driveStepContinuous(edgeArg, to, step)
	default:
		return m.driveStepOnce(edgeArg, to, step)
	}
}

func (m *Manager) driveStepOnce(edgeArg *wire.Edge, to wire.Node, step int) error {
	var h handler.StepNavigation
	if m.cfg.StepNavFactory != nil {
		h = m.cfg.StepNavFactory()
	} else {
		h = noopStepNavHandler{m: m}
	}
	id := taskID(m.orderID, "stepnav", to.NodeID)
	onAbort := func() { m.enqueue(m.abortOrder) }
	sm, err := task.NewStepNavManager(m.net, id, edgeArg, to, h, m.store, m.emitter, m.orderID, step, onAbort)
	if err != nil {
		return err
	}
	m.tasks = append(m.tasks, sm.Manager)
	m.trackCeiling(wire.BlockingSoft, sm.Manager)
	ref := taskRef{id: sm.ID(), blockingType: wire.BlockingSoft, ready: sm.Ready(), done: sm.Done(), sync: true}
	newTail, err := m.emitParallelStep([]taskRef{ref})
	if err != nil {
		return err
	}
	m.tail = newTail
	return nil
}

func (m *Manager) driveStepContinuous(edgeArg *wire.Edge, to wire.Node, step int) error {
	if m.contRun == nil || m.contRun.Finalized() {
		var h handler.ContinuousNavigation
		if m.cfg.ContinuousNavFactory != nil {
			h = m.cfg.ContinuousNavFactory()
		} else {
			h = noopContinuousNavHandler{m: m}
		}
		m.contRun = task.NewContinuousNavRun(h, m.store, m.emitter, m.orderID)
	}
	id := taskID(m.orderID, "contnav", to.NodeID)
	cs, err := m.contRun.AddStep(m.net, id, edgeArg, to, step)
	if err != nil {
		return err
	}
	m.tasks = append(m.tasks, cs.Manager)
	m.trackCeiling(wire.BlockingSoft, cs.Manager)
	ref := taskRef{id: cs.ID(), blockingType: wire.BlockingSoft, ready: cs.Ready(), done: cs.Done(), sync: true}
	newTail, err := m.emitParallelStep([]taskRef{ref})
	if err != nil {
		return err
	}
	m.tail = newTail
	return nil
}

// Shutdown cancels every not-yet-entered task and fails every active one
// across the whole order — the same full sweep over m.tasks as abortOrder,
// covering drive steps and pause/resume tasks as well as actions — then
// blocks until every task has reached its exited place, or ctx is done
// (§5's shutdown contract: "returns when every task has reached its
// exited place"). Net mutation this late is safe because the executor has
// already stopped accepting new handler work by the time Shutdown is
// called.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, t := range m.tasks {
		if !t.Cancel() {
			t.Failed()
		}
	}
	if m.contRun != nil {
		m.contRun.Finalize()
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if m.allExited() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// allExited reports whether every task manager this order has ever
// created has reached its exited place.
func (m *Manager) allExited() bool {
	for _, t := range m.tasks {
		if t.Exited().Tokens() == 0 {
			return false
		}
	}
	return true
}
