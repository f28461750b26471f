package task

import (
	"math"

	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/pnet"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/wire"
)

// ContinuousNavRun owns the single handler instance shared by a run of
// consecutive drive steps (§4.4): "the first step's task_initialize
// starts the handler once; subsequent steps' task_initialize merely call
// started() on themselves." At most one run is alive at a time, per the
// §4.4 invariant; the net manager enforces that by only ever holding one
// *ContinuousNavRun as "current".
type ContinuousNavRun struct {
	handler   handler.ContinuousNavigation
	store     *state.Store
	emitter   emit.Emitter
	orderID   string
	started   bool
	finalized bool
	steps     []*ContinuousNavStep

	// lastPose and havePose track the previous reported pose so EvalPosition
	// can accumulate the real incremental distance travelled between
	// consecutive poses, rather than a no-op zero delta.
	lastPose wire.AGVPosition
	havePose bool
}

// NewContinuousNavRun starts a new run. The caller supplies the handler
// instance (from the host application's ContinuousNavFactory); it is
// reused across every step added to this run until Finalize.
func NewContinuousNavRun(h handler.ContinuousNavigation, store *state.Store, emitter emit.Emitter, orderID string) *ContinuousNavRun {
	return &ContinuousNavRun{handler: h, store: store, emitter: emitter, orderID: orderID}
}

// Finalize marks the run as complete: no further steps will be added. The
// net manager calls this when a HARD/SOFT action forces finalization or
// the order's base is exhausted; the run itself is torn down once its
// last step exits.
func (r *ContinuousNavRun) Finalize() { r.finalized = true }

// Finalized reports whether Finalize has been called.
func (r *ContinuousNavRun) Finalized() bool { return r.finalized }

// AddStep builds a per-step task manager for one drive-to-node goal
// (reached via edge, if any) under this run and returns it.
func (r *ContinuousNavRun) AddStep(net *pnet.Net, id string, edge *wire.Edge, goal wire.Node, step int) (*ContinuousNavStep, error) {
	cs := &ContinuousNavStep{run: r, edge: edge, goal: goal, step: step}
	m, err := NewManager(net, "contnav:"+id, cs)
	if err != nil {
		return nil, err
	}
	cs.Manager = m
	r.steps = append(r.steps, cs)
	return cs, nil
}

// HorizonUpdated and BaseIncreased forward directly to the shared handler
// (§4.4: "when the order is later extended while the handler is live, the
// manager calls handler.base_increased(...); when the horizon is updated,
// handler.horizon_updated(...)").
func (r *ContinuousNavRun) HorizonUpdated(nodes []wire.Node, edges []wire.Edge) {
	r.handler.HorizonUpdated(nodes, edges)
}

func (r *ContinuousNavRun) BaseIncreased(deltaNodes []wire.Node, deltaEdges []wire.Edge) {
	r.handler.BaseIncreased(deltaNodes, deltaEdges)
}

// ContinuousNavStep is one per-step task manager within a
// ContinuousNavRun. Its task_initialize either starts the shared handler
// (first step of the run) or merely acknowledges started() on itself
// (subsequent steps).
type ContinuousNavStep struct {
	*Manager
	run  *ContinuousNavRun
	edge *wire.Edge
	goal wire.Node
	step int
}

func (cs *ContinuousNavStep) TaskInitialize() {
	r := cs.run
	if !r.started {
		r.started = true
		r.emitEvent(cs, "continuous_nav_started")
		nodes, edges := r.baseSnapshot()
		r.handler.Start(cs, nodes, edges)
		return
	}
	// Subsequent steps of an already-live run: the handler is already
	// driving toward the accumulated base; just acknowledge this step
	// entered initializing so the PN advances it to running.
	cs.Started()
}

// baseSnapshot returns the full base (every goal node and edge of every
// step added to this run so far), per §4.4's "the handler receives the
// initial base via start(base_nodes, base_edges)" — called only once, at
// the first step's task_initialize, by which point every step belonging
// to this InstallOrder call has already been appended to r.steps (the net
// manager walks the whole released suffix before the net ever fires).
func (r *ContinuousNavRun) baseSnapshot() ([]wire.Node, []wire.Edge) {
	nodes := make([]wire.Node, 0, len(r.steps))
	var edges []wire.Edge
	for _, s := range r.steps {
		nodes = append(nodes, s.goal)
		if s.edge != nil {
			edges = append(edges, *s.edge)
		}
	}
	return nodes, edges
}

func (cs *ContinuousNavStep) TaskRunning() { cs.run.emitEvent(cs, "continuous_nav_running") }

func (cs *ContinuousNavStep) TaskPaused() {
	cs.run.emitEvent(cs, "continuous_nav_paused")
	cs.run.handler.Pause(cs)
}

// TaskFinished advances canonical progress exactly like StepNavManager;
// per-step finish is triggered by the handler, never decided by the
// scheduler itself: SetNodeReached finishes whichever step of the run has
// the given sequence id, and EvalPosition tests this step's goal.
func (cs *ContinuousNavStep) TaskFinished() {
	cs.run.store.AdvanceToNode(cs.goal.NodeID, cs.goal.SequenceID)
	cs.run.emitEvent(cs, "continuous_nav_node_reached")
	if cs.run.finalized && cs.isLastStep() {
		cs.run.store.SetDriving(false)
	}
}

func (cs *ContinuousNavStep) TaskFailed() {
	cs.run.store.SetDriving(false)
	cs.run.emitEvent(cs, "continuous_nav_failed")
	cs.run.handler.Stop(cs)
}

func (cs *ContinuousNavStep) isLastStep() bool {
	steps := cs.run.steps
	return len(steps) > 0 && steps[len(steps)-1] == cs
}

func (r *ContinuousNavRun) emitEvent(cs *ContinuousNavStep, msg string) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(emit.Event{OrderID: r.orderID, Step: cs.step, TaskID: cs.goal.NodeID, Msg: msg})
}

// handler.ContinuousNavAck implementation.

func (cs *ContinuousNavStep) Finished() bool { return cs.MarkFinished() }

func (cs *ContinuousNavStep) SetResult(description string) {}
func (cs *ContinuousNavStep) AddError(e wire.Error)         { cs.run.store.AddError(e) }
func (cs *ContinuousNavStep) AddInfo(i wire.Info)           { cs.run.store.AddInfo(i) }

func (cs *ContinuousNavStep) SetPosition(pos wire.AGVPosition) { cs.run.store.SetPosition(pos) }

func (cs *ContinuousNavStep) SetNodeReached(seq uint32) {
	for _, s := range cs.run.steps {
		if s.goal.SequenceID == seq {
			s.Finished()
			return
		}
	}
}

// EvalPosition accumulates distance since the last reached node and
// reports whether the goal counts as reached (§4.4): the pose's deviation
// circle (radius DeviationRange) must lie inside the goal node's allowed
// deviation circle and, when the node sets AllowedDeviationTheta, the
// heading must be within that tolerance.
func (cs *ContinuousNavStep) EvalPosition(pose wire.AGVPosition) bool {
	r := cs.run
	delta := 0.0
	if r.havePose && pose.MapID == r.lastPose.MapID {
		dx := pose.X - r.lastPose.X
		dy := pose.Y - r.lastPose.Y
		delta = math.Hypot(dx, dy)
	}
	r.store.AccumulateDistance(pose.MapID, delta)
	r.lastPose = pose
	r.havePose = true
	if cs.goal.NodePosition == nil {
		return false
	}
	dx := pose.X - cs.goal.NodePosition.X
	dy := pose.Y - cs.goal.NodePosition.Y
	dev := cs.goal.NodePosition.AllowedDeviationXY
	reached := dev > 0 && math.Hypot(dx, dy)+pose.DeviationRange <= dev
	if reached && cs.goal.NodePosition.AllowedDeviationTheta > 0 {
		dTheta := math.Remainder(pose.Theta-cs.goal.NodePosition.Theta, 2*math.Pi)
		reached = math.Abs(dTheta) <= cs.goal.NodePosition.AllowedDeviationTheta
	}
	if reached {
		cs.Finished()
	}
	return reached
}
