// Package metrics exposes Prometheus counters for the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	admissions      *prometheus.CounterVec
	rollovers       prometheus.Counter
	recordFailures  prometheus.Counter
	trackerOutcomes *prometheus.CounterVec
	pollErrors      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plansight",
			Name:      "admissions_total",
			Help:      "Admission decisions by result.",
		}, []string{"result"}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plansight",
			Name:      "ledger_rollovers_total",
			Help:      "Monthly usage counter resets applied lazily.",
		}),
		recordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plansight",
			Name:      "ledger_record_failures_total",
			Help:      "RecordAnalysis calls where the charge was not applied.",
		}),
		trackerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plansight",
			Name:      "tracker_sessions_total",
			Help:      "Finished watch sessions by outcome.",
		}, []string{"outcome"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plansight",
			Name:      "tracker_poll_errors_total",
			Help:      "Transient job fetch failures during tracking.",
		}),
	}
	reg.MustRegister(m.admissions, m.rollovers, m.recordFailures, m.trackerOutcomes, m.pollErrors)
	return m
}

func (m *Metrics) IncAdmission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRollover() {
	if m == nil {
		return
	}
	m.rollovers.Inc()
}

func (m *Metrics) IncRecordFailure() {
	if m == nil {
		return
	}
	m.recordFailures.Inc()
}

func (m *Metrics) IncTrackerOutcome(outcome string) {
	if m == nil {
		return
	}
	m.trackerOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}

func provideGatherer(reg *prometheus.Registry) prometheus.Gatherer {
	return reg
}

// Module wires the metrics registry and counters.
var Module = fx.Module("observability.metrics",
	fx.Provide(
		newRegistry,
		provideRegisterer,
		provideGatherer,
		New,
	),
)
