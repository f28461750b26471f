package emit

import "context"

// Fanout implements Emitter by forwarding every call to a fixed list of
// sinks, mirroring the original implementation's multiplex_logger (console +
// file + custom sinks at once). A vehicle commonly wants this: text logs to
// stdout for the operator, an OTelEmitter for tracing, and a BufferedEmitter
// in tests — all receiving the same events.
//
// Emit/EmitBatch best-effort every sink even if one panics-free-fails; Flush
// returns the first error encountered but still flushes every sink.
type Fanout struct {
	sinks []Emitter
}

// NewFanout returns an Emitter that forwards to every given sink, in order.
func NewFanout(sinks ...Emitter) *Fanout {
	return &Fanout{sinks: sinks}
}

// Emit forwards the event to every sink.
func (f *Fanout) Emit(event Event) {
	for _, sink := range f.sinks {
		sink.Emit(event)
	}
}

// EmitBatch forwards the batch to every sink, collecting the first error.
func (f *Fanout) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, sink := range f.sinks {
		if err := sink.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush flushes every sink, collecting the first error.
func (f *Fanout) Flush(ctx context.Context) error {
	var firstErr error
	for _, sink := range f.sinks {
		if err := sink.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
