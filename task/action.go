package task

import (
	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/pnet"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/wire"
)

// ActionManager is the task manager variant for a single action (§4.2,
// §4.3). One is created per action the order-to-net translation emits,
// and one per instant action the net manager splices in (§4.5).
type ActionManager struct {
	*Manager
	action  wire.Action
	handler handler.Action
	store   *state.Store
	emitter emit.Emitter
	orderID string
	step    int
}

// NewActionManager builds an action task manager on net and wires its
// hooks to drive handler through the lifecycle in §4.2's hook table.
func NewActionManager(net *pnet.Net, action wire.Action, h handler.Action, store *state.Store, emitter emit.Emitter, orderID string, step int) (*ActionManager, error) {
	am := &ActionManager{
		action:  action,
		handler: h,
		store:   store,
		emitter: emitter,
		orderID: orderID,
		step:    step,
	}
	m, err := NewManager(net, "action:"+action.ActionID, am)
	if err != nil {
		return nil, err
	}
	am.Manager = m
	return am, nil
}

func (am *ActionManager) TaskInitialize() {
	am.store.SetActionStatus(am.action.ActionID, wire.ActionInitializing, "")
	am.emitEvent("task_started")
	am.handler.Start(am, am.action)
}

func (am *ActionManager) TaskRunning() {
	am.store.SetActionStatus(am.action.ActionID, wire.ActionRunning, "")
	am.emitEvent("task_running")
}

func (am *ActionManager) TaskPaused() {
	am.store.SetActionStatus(am.action.ActionID, wire.ActionPaused, "")
	am.emitEvent("task_paused")
	am.handler.Pause(am)
}

func (am *ActionManager) TaskFinished() {
	am.store.SetActionStatus(am.action.ActionID, wire.ActionFinished, "")
	am.emitEvent("task_finished")
}

func (am *ActionManager) TaskFailed() {
	am.store.SetActionStatus(am.action.ActionID, wire.ActionFailed, "")
	am.emitEvent("task_failed")
	am.handler.Stop(am)
}

// BlockingType returns the action's blocking type, which §4.5 uses to
// decide how an instant action interception treats it (sequential vs.
// parallel, stopped vs. left running).
func (am *ActionManager) BlockingType() wire.BlockingType { return am.action.BlockingType }

// RequestStop asks the handler to stop this action while it is still
// in flight (§4.5's "stop all currently running actions" / "stop
// currently running HARD actions"). It does not itself drive any PN
// transition — the handler is expected to acknowledge the stop by
// eventually calling Failed() on am, the same as any other failure.
func (am *ActionManager) RequestStop() {
	if am.IsActive() {
		am.handler.Stop(am)
	}
}

func (am *ActionManager) emitEvent(msg string) {
	if am.emitter == nil {
		return
	}
	am.emitter.Emit(emit.Event{
		OrderID: am.orderID,
		Step:    am.step,
		TaskID:  am.action.ActionID,
		Msg:     msg,
		Meta:    map[string]interface{}{"blocking_type": string(am.action.BlockingType)},
	})
}

// handler.Ack implementation, delegating lifecycle transitions to the
// embedded Manager and state mutation to the store.

// Finished satisfies handler.Ack; Manager exposes the same transition as
// MarkFinished to avoid colliding with the FinishedPlace() accessor.
func (am *ActionManager) Finished() bool { return am.MarkFinished() }

func (am *ActionManager) SetResult(description string) {
	am.store.SetActionStatus(am.action.ActionID, wire.ActionRunning, description)
}

func (am *ActionManager) AddError(e wire.Error) { am.store.AddError(e) }
func (am *ActionManager) AddInfo(i wire.Info)   { am.store.AddInfo(i) }
