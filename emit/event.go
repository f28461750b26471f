package emit

// Event represents an observability event emitted during order execution.
//
// Events give a log/trace backend insight into scheduler behavior without
// coupling the scheduler to any one sink: task lifecycle transitions,
// net-manager interpretation steps, validation rejections, and
// state-update publishes are all reported as Events.
type Event struct {
	// OrderID identifies the order whose execution emitted this event.
	// Empty for vehicle-level events (connection, instant actions with no order).
	OrderID string

	// Step is the net-manager's monotonic interpretation step (one per
	// parallel time step emitted by the translator). Zero for events not
	// tied to a specific step.
	Step int

	// TaskID identifies the task manager that emitted this event (an
	// action ID, or a synthesized nav-step ID). Empty for order- or
	// vehicle-level events.
	TaskID string

	// Msg is a short machine-stable event name, e.g. "task_started",
	// "order_rejected", "state_published".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys: "error", "blocking_type", "urgency", "duration_ms".
	Meta map[string]interface{}
}
