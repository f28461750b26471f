// Package audit provides append-only diagnostic storage for emitted
// events and handler errors. It is explicitly NOT an order-execution
// persistence layer: nothing here is read back to resume an order after a
// restart (spec.md's persistence non-goal), it exists purely for
// postmortem/operational visibility.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/fleetline/agvctl/emit"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("audit: not found")

// ErrorRecord is one handler/validation/internal error captured for
// postmortem review.
type ErrorRecord struct {
	OrderID   string
	TaskID    string
	Message   string
	Timestamp time.Time
}

// Store is the diagnostic audit trail: an append-only log of emitted
// events and errors, queryable by order. Implementations must tolerate
// being unavailable without affecting order execution — the vehicle's
// auditing emitter discards a write failure and continues (§7's "never
// abort an order over an observability failure").
type Store interface {
	// AppendEvent records an emitted event for later inspection.
	AppendEvent(ctx context.Context, e emit.Event) error

	// AppendError records a handler, validation, or internal error.
	AppendError(ctx context.Context, r ErrorRecord) error

	// EventsForOrder returns events recorded for orderID, oldest first,
	// capped at limit (0 means the store's own default cap).
	EventsForOrder(ctx context.Context, orderID string, limit int) ([]emit.Event, error)

	// ErrorsForOrder returns error records for orderID, oldest first.
	ErrorsForOrder(ctx context.Context, orderID string, limit int) ([]ErrorRecord, error)

	// Close releases any underlying resources (database handle, etc.).
	Close() error
}
