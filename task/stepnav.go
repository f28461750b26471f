package task

import (
	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/pnet"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/wire"
)

// StepNavManager is the task manager variant for one discrete
// drive-to-node time step under step-based navigation (§4.4): each step
// gets its own dedicated handler instance.
type StepNavManager struct {
	*Manager
	handler handler.StepNavigation
	store   *state.Store
	emitter emit.Emitter
	orderID string
	step    int

	viaEdge *wire.Edge
	goal    wire.Node
	onAbort func()
}

// NewStepNavManager builds a step-navigation task manager for one
// drive-to-node goal. onAbort is called from TaskFailed to take the rest
// of the order down with this step, per §4.4's "on task_failed it aborts
// the order" for step-based navigation; it may be nil in tests that only
// exercise this task in isolation.
func NewStepNavManager(net *pnet.Net, id string, viaEdge *wire.Edge, goal wire.Node, h handler.StepNavigation, store *state.Store, emitter emit.Emitter, orderID string, step int, onAbort func()) (*StepNavManager, error) {
	sm := &StepNavManager{
		handler: h,
		store:   store,
		emitter: emitter,
		orderID: orderID,
		step:    step,
		viaEdge: viaEdge,
		goal:    goal,
		onAbort: onAbort,
	}
	m, err := NewManager(net, "stepnav:"+id, sm)
	if err != nil {
		return nil, err
	}
	sm.Manager = m
	return sm, nil
}

func (sm *StepNavManager) TaskInitialize() {
	sm.store.SetDriving(true)
	sm.emitEvent("drive_started")
	sm.handler.Start(sm, sm.viaEdge, sm.goal)
}

func (sm *StepNavManager) TaskRunning() { sm.emitEvent("drive_running") }
func (sm *StepNavManager) TaskPaused() {
	sm.emitEvent("drive_paused")
	sm.handler.Pause(sm)
}

// TaskFinished advances the canonical last-reached-node sequence id, per
// §4.4: "on task_finished it advances the canonical last-reached-node
// sequence id".
func (sm *StepNavManager) TaskFinished() {
	sm.store.AdvanceToNode(sm.goal.NodeID, sm.goal.SequenceID)
	sm.store.SetDriving(false)
	sm.emitEvent("drive_finished")
}

// TaskFailed updates local bookkeeping, stops the handler, and — for
// step-based navigation — aborts the rest of the order via onAbort, per
// §4.4's "on task_failed it aborts the order".
func (sm *StepNavManager) TaskFailed() {
	sm.store.SetDriving(false)
	sm.emitEvent("drive_failed")
	sm.handler.Stop(sm)
	if sm.onAbort != nil {
		sm.onAbort()
	}
}

func (sm *StepNavManager) emitEvent(msg string) {
	if sm.emitter == nil {
		return
	}
	sm.emitter.Emit(emit.Event{OrderID: sm.orderID, Step: sm.step, TaskID: sm.goal.NodeID, Msg: msg})
}

func (sm *StepNavManager) Finished() bool { return sm.MarkFinished() }

func (sm *StepNavManager) SetResult(description string) {}
func (sm *StepNavManager) AddError(e wire.Error)         { sm.store.AddError(e) }
func (sm *StepNavManager) AddInfo(i wire.Info)           { sm.store.AddInfo(i) }

func (sm *StepNavManager) SetPosition(pos wire.AGVPosition) { sm.store.SetPosition(pos) }

// UpdateDistanceSinceLastNode accumulates distance since the last reached
// node, resetting the accumulator on a mapId change (§9 open question).
func (sm *StepNavManager) UpdateDistanceSinceLastNode(mapID string, delta float64) {
	sm.store.AccumulateDistance(mapID, delta)
}
