package emit

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// NewOTelErrorLogger returns a logr.Logger suitable for otel.SetLogger,
// for the OpenTelemetry SDK's internal error handler (export failures,
// dropped spans). The logger writes through the standard library's log
// package (stderr by default), not through an Emitter.
//
// stdr is a thin logr.LogSink over the standard library's log package; the
// scheduler does not need a heavier structured-logging backend here because
// this path only carries the SDK's own internal diagnostics, never
// order-execution events.
func NewOTelErrorLogger() logr.Logger {
	return stdr.New(nil)
}
