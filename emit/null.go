package emit

import "context"

// NullEmitter implements Emitter by discarding all events.
//
// Use cases:
//   - Production deployments where observability overhead is unwanted.
//   - Tests that don't care about event capture.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that discards everything it's given.
// Safe for concurrent use; has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}

// EmitBatch discards every event in the batch.
func (n *NullEmitter) EmitBatch(_ context.Context, events []Event) error {
	return nil
}

// Flush is a no-op.
func (n *NullEmitter) Flush(_ context.Context) error {
	return nil
}
