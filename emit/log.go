// Package emit provides event emission and observability for order execution.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// LogEmitter implements Emitter by writing structured log output to a writer.
//
// Supports two output modes:
//   - Text mode: human-readable, key=value pairs.
//   - JSON mode: one JSON object per line (JSONL).
//
// If jsonMode is left unset via NewLogEmitterAuto, the mode is picked from
// whether writer is a terminal (text for a TTY, JSON otherwise) — the same
// heuristic the original implementation's console vs. file logger split
// made by hand (extra/logger_utils/console_logger vs file_logger).
//
// Example text output:
//
//	[task_started] orderID=order-1 step=2 taskID=A3
//
// Example JSON output:
//
//	{"orderID":"order-1","step":2,"taskID":"A3","msg":"task_started","meta":null}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter with an explicit output mode.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// NewLogEmitterAuto creates a LogEmitter that picks text mode when writer is
// an interactive terminal and JSON mode otherwise (piped to a file, a
// supervisor, or a log collector).
func NewLogEmitterAuto(writer io.Writer) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	jsonMode := true
	if f, ok := writer.(*os.File); ok {
		jsonMode = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		OrderID string                 `json:"orderID"`
		Step    int                    `json:"step"`
		TaskID  string                 `json:"taskID"`
		Msg     string                 `json:"msg"`
		Meta    map[string]interface{} `json:"meta"`
	}{
		OrderID: event.OrderID,
		Step:    event.Step,
		TaskID:  event.TaskID,
		Msg:     event.Msg,
		Meta:    event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] orderID=%s step=%d taskID=%s",
		event.Msg, event.OrderID, event.Step, event.TaskID)

	if dur, ok := event.Meta["duration_ms"].(time.Duration); ok {
		_, _ = fmt.Fprintf(l.writer, " dur=%s", humanize.RelTime(time.Now().Add(-dur), time.Now(), "", ""))
	}

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes multiple events, one after another, exactly as Emit
// would write each of them.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if l.jsonMode {
			l.emitJSON(event)
		} else {
			l.emitText(event)
		}
	}
	return nil
}

// Flush is a no-op: LogEmitter writes directly without internal buffering.
// Wrap writer in a bufio.Writer and flush that directly if buffering is added.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
