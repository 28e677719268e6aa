// Package metrics exposes Prometheus instrumentation for the relay
// and the execution dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveSessions    prometheus.Gauge
	ActiveConnections prometheus.Gauge
	EventsTotal       *prometheus.CounterVec
	DroppedTotal      prometheus.Counter
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
}

// New registers all collectors against the given registry. Pass
// prometheus.DefaultRegisterer in production; tests use their own
// registry so parallel instances never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "interview",
			Name:      "active_sessions",
			Help:      "Number of live sessions.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "interview",
			Name:      "active_connections",
			Help:      "Number of connected participants.",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview",
			Name:      "events_total",
			Help:      "Admitted session events by type.",
		}, []string{"type"}),
		DroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "interview",
			Name:      "malformed_events_total",
			Help:      "Events dropped for failing decode or validation.",
		}),
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview",
			Name:      "executions_total",
			Help:      "Code executions by language and outcome.",
		}, []string{"language", "outcome"}),
		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "interview",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of code executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"language"}),
	}
}

// Outcome label values for ExecutionsTotal.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)
