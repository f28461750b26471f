package vehicle

import (
	"context"
	"time"

	"github.com/fleetline/agvctl/audit"
	"github.com/fleetline/agvctl/emit"
)

// auditTimeout bounds every audit write so a slow or unreachable audit
// backend can never stall a spinner thread's emit call.
const auditTimeout = 2 * time.Second

// auditingEmitter wraps an Emitter and mirrors every event (and any event
// carrying an "error" meta key) into an audit.Store, without changing
// what the wrapped Emitter itself does. A write failure is swallowed —
// the audit trail is diagnostic, never load-bearing for order execution
// (§7's "never abort an order over an observability failure").
type auditingEmitter struct {
	inner emit.Emitter
	store audit.Store
}

var _ emit.Emitter = (*auditingEmitter)(nil)

func (a *auditingEmitter) Emit(event emit.Event) {
	a.inner.Emit(event)

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	_ = a.store.AppendEvent(ctx, event)

	if msg, ok := event.Meta["error"]; ok {
		errCtx, errCancel := context.WithTimeout(context.Background(), auditTimeout)
		defer errCancel()
		_ = a.store.AppendError(errCtx, audit.ErrorRecord{
			OrderID:   event.OrderID,
			TaskID:    event.TaskID,
			Message:   toMessage(msg),
			Timestamp: time.Now().UTC(),
		})
	}
}

func (a *auditingEmitter) EmitBatch(ctx context.Context, events []emit.Event) error {
	if err := a.inner.EmitBatch(ctx, events); err != nil {
		return err
	}
	for _, e := range events {
		_ = a.store.AppendEvent(ctx, e)
	}
	return nil
}

func (a *auditingEmitter) Flush(ctx context.Context) error {
	return a.inner.Flush(ctx)
}

func toMessage(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
