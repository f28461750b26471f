package netmgr

import (
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/wire"
)

// Default handler implementations used when the host application leaves a
// factory unconfigured, so an order with nothing wired still drains to
// completion instead of hanging forever (except a continuous-navigation
// run of more than one step; see noopContinuousNavHandler) — useful for exercising the
// translation layer in isolation. Every acknowledgement is pushed through
// m.enqueue rather than called inline, since Start/Pause/etc. run
// synchronously from within the firing transition's observer and must not
// fire transitions themselves (§4.1).

type noopActionHandler struct{ m *Manager }

func (h noopActionHandler) Start(ack handler.Ack, action wire.Action) {
	h.m.enqueue(func() { ack.Started(); ack.Finished() })
}
func (h noopActionHandler) Pause(ack handler.Ack)  { h.m.enqueue(func() { ack.Paused() }) }
func (h noopActionHandler) Resume(ack handler.Ack) { h.m.enqueue(func() { ack.Resumed() }) }
func (h noopActionHandler) Stop(ack handler.Ack)   {}

type noopStepNavHandler struct{ m *Manager }

func (h noopStepNavHandler) Start(ack handler.StepNavAck, viaEdge *wire.Edge, goal wire.Node) {
	h.m.enqueue(func() { ack.Started(); ack.Finished() })
}
func (h noopStepNavHandler) Pause(ack handler.StepNavAck)  { h.m.enqueue(func() { ack.Paused() }) }
func (h noopStepNavHandler) Resume(ack handler.StepNavAck) { h.m.enqueue(func() { ack.Resumed() }) }
func (h noopStepNavHandler) Stop(ack handler.StepNavAck)   {}

// noopContinuousNavHandler finishes only the step whose ack it receives at
// Start, the run's first step; later steps of the run, and steps added
// through BaseIncreased, are never reported reached.
type noopContinuousNavHandler struct{ m *Manager }

func (h noopContinuousNavHandler) Start(ack handler.ContinuousNavAck, baseNodes []wire.Node, baseEdges []wire.Edge) {
	h.m.enqueue(func() { ack.Started(); ack.Finished() })
}
func (h noopContinuousNavHandler) HorizonUpdated(nodes []wire.Node, edges []wire.Edge)          {}
func (h noopContinuousNavHandler) BaseIncreased(deltaNodes []wire.Node, deltaEdges []wire.Edge) {}
func (h noopContinuousNavHandler) Pause(ack handler.ContinuousNavAck) {
	h.m.enqueue(func() { ack.Paused() })
}
func (h noopContinuousNavHandler) Resume(ack handler.ContinuousNavAck) {
	h.m.enqueue(func() { ack.Resumed() })
}
func (h noopContinuousNavHandler) Stop(ack handler.ContinuousNavAck) {}

type noopPauseResumeHandler struct{ m *Manager }

func (h noopPauseResumeHandler) DoPause(ack handler.Ack)  { h.m.enqueue(func() { ack.Finished() }) }
func (h noopPauseResumeHandler) DoResume(ack handler.Ack) { h.m.enqueue(func() { ack.Finished() }) }
