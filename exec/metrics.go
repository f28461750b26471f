package exec

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the executor and debouncer, grounded on the
// teacher's PrometheusMetrics struct (graph/metrics.go) — same
// promauto-registered-on-construction pattern, renamed fields for this
// domain's callables/publishes instead of node/edge executions.
type Metrics struct {
	TasksProcessed  prometheus.Counter
	TaskErrors      prometheus.Counter
	QueueDepth      prometheus.Gauge
	SpinnerBusy     prometheus.Gauge
	StatePublishes  *prometheus.CounterVec
	PublishLatency  prometheus.Histogram
}

// NewMetrics registers and returns a Metrics instance against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "agvctl_executor_tasks_processed_total",
			Help: "Total handler callables drained from the executor queue.",
		}),
		TaskErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "agvctl_executor_task_errors_total",
			Help: "Total handler callables that panicked (wrapped as FATAL Internal Error).",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agvctl_executor_queue_depth",
			Help: "Current number of callables waiting in the executor queue.",
		}),
		SpinnerBusy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agvctl_executor_spinners_busy",
			Help: "Number of spinner threads currently executing a callable.",
		}),
		StatePublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agvctl_state_publishes_total",
			Help: "Total state messages published, by urgency.",
		}, []string{"urgency"}),
		PublishLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agvctl_state_publish_latency_seconds",
			Help:    "Time spent in the state publish callback.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
