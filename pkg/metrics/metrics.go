// Package metrics exposes Prometheus collectors for the automation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler holds the queue processor's collectors.
type Scheduler struct {
	ExecutionsCompleted prometheus.Counter
	ExecutionsFailed    prometheus.Counter
	ExecutionsRetried   prometheus.Counter
	ExecutionsDeferred  prometheus.Counter
	ExecutionsReaped    prometheus.Counter
	InFlight            prometheus.Gauge
	DispatchDuration    prometheus.Histogram
}

// NewScheduler registers and returns the scheduler's collectors.
func NewScheduler(registerer prometheus.Registerer) *Scheduler {
	factory := promauto.With(registerer)

	return &Scheduler{
		ExecutionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldline_executions_completed_total",
			Help: "Executions that finished with every step succeeding.",
		}),
		ExecutionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldline_executions_failed_total",
			Help: "Executions that reached the failed terminal state.",
		}),
		ExecutionsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldline_executions_retried_total",
			Help: "Attempts re-queued after a transient failure.",
		}),
		ExecutionsDeferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldline_executions_deferred_total",
			Help: "Executions parked until the tenant's next business-hours window.",
		}),
		ExecutionsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldline_executions_reaped_total",
			Help: "Stale running executions returned to pending by the reaper.",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldline_executions_in_flight",
			Help: "Claimed executions currently being dispatched.",
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldline_dispatch_duration_seconds",
			Help:    "Wall time spent dispatching one execution's steps.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
