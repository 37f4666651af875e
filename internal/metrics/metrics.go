// Package metrics exposes the agent's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors for the agent.
type Metrics struct {
	// TurnsTotal counts completed turns by route and outcome.
	TurnsTotal *prometheus.CounterVec

	// NodeFailures counts degraded node executions by node name.
	NodeFailures *prometheus.CounterVec

	// RetrievalSourceErrors counts per-source retrieval failures.
	RetrievalSourceErrors *prometheus.CounterVec

	// ReflectionIterations observes how many reflection cycles a history
	// turn took before terminating.
	ReflectionIterations prometheus.Histogram

	// TurnDuration observes wall-clock turn latency in seconds.
	TurnDuration prometheus.Histogram
}

// New creates and registers the collectors. A nil registerer gets a
// private registry, which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "suviet",
			Name:      "turns_total",
			Help:      "Completed conversation turns by route and outcome.",
		}, []string{"route", "outcome"}),
		NodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "suviet",
			Name:      "node_failures_total",
			Help:      "Node executions that degraded due to an external failure.",
		}, []string{"node"}),
		RetrievalSourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "suviet",
			Name:      "retrieval_source_errors_total",
			Help:      "Retrieval fan-out failures by source.",
		}, []string{"source"}),
		ReflectionIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "suviet",
			Name:      "reflection_iterations",
			Help:      "Reflection cycles per history turn.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "suviet",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock turn latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.TurnsTotal,
		m.NodeFailures,
		m.RetrievalSourceErrors,
		m.ReflectionIterations,
		m.TurnDuration,
	)
	return m
}
