package vehicle

import (
	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/exec"
	"github.com/fleetline/agvctl/wire"
)

// publishState is the debouncer's publish callback (§4.6): it snapshots
// canonical state, stamps a fresh header, and hands the document to the
// transport. Failures are logged, never returned — a publish failure must
// not abort order execution (§7).
func (v *Vehicle) publishState(urgency exec.Urgency) {
	snap := v.store.Snapshot()
	snap.Header = v.stampHeader("state")

	if err := v.transport.QueueState(snap); err != nil {
		v.emitter.Emit(emit.Event{
			OrderID: snap.OrderID,
			Msg:     "state_publish_failed",
			Meta:    map[string]interface{}{"urgency": urgency.String(), "error": err.Error()},
		})
		return
	}
	v.emitter.Emit(emit.Event{OrderID: snap.OrderID, Msg: "state_published", Meta: map[string]interface{}{"urgency": urgency.String()}})
}

// PublishVisualization sends a one-off pose/velocity document over the
// high-frequency visualization topic, independent of the state-update
// debounce window (§6). Handlers call this directly from their odometry
// callback; the transport applies its own rate limit.
func (v *Vehicle) PublishVisualization(pos *wire.AGVPosition, vel *wire.Velocity) error {
	viz := wire.Visualization{
		Header:      v.stampHeader("visualization"),
		AGVPosition: pos,
		Velocity:    vel,
	}
	return v.transport.QueueVisualization(viz)
}
