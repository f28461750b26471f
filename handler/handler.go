// Package handler declares the contracts a host application implements to
// drive a vehicle's physical action and navigation subsystems (§6). The
// scheduler (task package) calls these from spinner threads and expects
// calls back onto the per-task acknowledgement methods (Started, Paused,
// Resumed, Finished, Failed) to be non-blocking or short-blocking; any
// long-running physical work must be handed off to the handler's own
// goroutine.
package handler

import "github.com/fleetline/agvctl/wire"

// Ack is implemented by every task manager variant and passed to handlers
// so they can acknowledge lifecycle transitions without the handler
// needing to know which variant owns it.
type Ack interface {
	Started() bool
	Paused() bool
	Resumed() bool
	Finished() bool
	Failed() bool

	SetResult(description string)
	AddError(e wire.Error)
	AddInfo(i wire.Info)
}

// Action is implemented once per running action (blocking-type HARD, SOFT,
// or NONE); the net manager constructs one through the ActionFactory when
// it builds the action's task manager, and the handler's Start is called
// when that task's initializing place becomes 1.
type Action interface {
	Start(ack Ack, action wire.Action)
	Pause(ack Ack)
	Resume(ack Ack)
	Stop(ack Ack)
}

// StepNavAck extends Ack with the additional acknowledgement calls a
// step-navigation handler makes back into its manager (§6).
type StepNavAck interface {
	Ack
	SetPosition(pos wire.AGVPosition)
	UpdateDistanceSinceLastNode(mapID string, delta float64)
}

// StepNavigation drives one discrete drive-to-node step.
type StepNavigation interface {
	Start(ack StepNavAck, viaEdge *wire.Edge, goal wire.Node)
	Pause(ack StepNavAck)
	Resume(ack StepNavAck)
	Stop(ack StepNavAck)
}

// ContinuousNavAck extends Ack with the additional acknowledgement calls a
// continuous-navigation handler makes back into its manager: SetNodeReached
// and EvalPosition are how the handler tells the manager a per-step
// task_finished should fire — the manager never decides "reached" on its
// own (§4.4 invariant); EvalPosition compares the handler's reported pose
// against the target node's deviation constraints and reports whether it
// encloses the target, while also accumulating distance since the last
// reached node.
type ContinuousNavAck interface {
	Ack
	SetPosition(pos wire.AGVPosition)
	SetNodeReached(seq uint32)
	EvalPosition(pose wire.AGVPosition) (reached bool)
}

// ContinuousNavigation spans a run of consecutive drive steps under one
// handler instance (§4.4).
type ContinuousNavigation interface {
	Start(ack ContinuousNavAck, baseNodes []wire.Node, baseEdges []wire.Edge)
	HorizonUpdated(nodes []wire.Node, edges []wire.Edge)
	BaseIncreased(deltaNodes []wire.Node, deltaEdges []wire.Edge)
	Pause(ack ContinuousNavAck)
	Resume(ack ContinuousNavAck)
	Stop(ack ContinuousNavAck)
}

// PauseResume implements the startPause/stopPause instant actions.
type PauseResume interface {
	DoPause(ack Ack)
	DoResume(ack Ack)
}

// Odometry is optional; if supplied, initPosition instant actions are
// routed to it.
type Odometry interface {
	InitializePosition(x, y, theta float64, mapID, lastNodeID string) error
}

// ActionFactory constructs a fresh Action handler for a given action
// definition. Supplied by the host application at configuration time.
type ActionFactory func(action wire.Action) Action

// StepNavFactory constructs a fresh StepNavigation handler per drive step.
type StepNavFactory func() StepNavigation

// ContinuousNavFactory constructs the single live ContinuousNavigation
// handler instance for a continuous-navigation run.
type ContinuousNavFactory func() ContinuousNavigation

// PauseResumeFactory constructs a fresh PauseResume handler per
// startPause/stopPause instant action.
type PauseResumeFactory func() PauseResume
