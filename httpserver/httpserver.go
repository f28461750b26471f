// Package httpserver runs the vehicle's diagnostics HTTP server: health
// and Prometheus metrics endpoints alongside the MQTT connection, the
// thing a fielded AGV stack exposes for ops visibility without touching
// the VDA5050 wire protocol itself.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthFunc reports whether the vehicle considers itself healthy —
// broker connected, net manager responsive. A nil error means healthy.
type HealthFunc func() error

// Server is the diagnostics HTTP server.
type Server struct {
	srv *http.Server
}

// New builds a server listening on addr, exposing:
//   - GET /healthz — 200 while health returns nil, 503 otherwise.
//   - GET /metrics — the Prometheus registry in promhttp text format.
//
// Both handlers are wrapped with otelhttp so request latency and count
// show up as spans/metrics alongside the rest of the vehicle's telemetry.
func New(addr string, reg *prometheus.Registry, health HealthFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/healthz", otelhttp.NewHandler(healthHandler(health), "healthz"))
	mux.Handle("/metrics", otelhttp.NewHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), "metrics"))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Run starts serving and blocks until ctx is cancelled, at which point it
// shuts down the server gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
