// Package metrics exposes Prometheus instruments for decisions and brackets.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regime_bot"

// Metrics groups the collectors a run updates.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	BracketEvents *prometheus.CounterVec
	States        *prometheus.CounterVec
	ResolveErrors prometheus.Counter
	OpenBrackets  prometheus.Gauge
	MatrixEntries prometheus.Gauge
	MatrixStates  prometheus.Gauge
	RealizedPnL   prometheus.Gauge
	BenchmarkPnL  prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Sizing decisions by outcome.",
		}, []string{"outcome"}),
		BracketEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bracket_events_total",
			Help:      "Bracket lifecycle events by kind.",
		}, []string{"event"}),
		States: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "states_observed_total",
			Help:      "Encoded state labels by mode.",
		}, []string{"mode"}),
		ResolveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_resolve_errors_total",
			Help:      "Candidate target states that could not be resolved to a price.",
		}),
		OpenBrackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_brackets",
			Help:      "Instruments with a pending or open bracket.",
		}),
		MatrixEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transition_matrix_entries",
			Help:      "Entries in the loaded or compiled transition matrix.",
		}),
		MatrixStates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transition_matrix_states",
			Help:      "Distinct from-states in the transition matrix.",
		}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realized_pnl",
			Help:      "Realized PnL of the run so far.",
		}),
		BenchmarkPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "benchmark_pnl",
			Help:      "PnL of an equal-weight buy-and-hold of the same instruments.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Decisions, m.BracketEvents, m.States, m.ResolveErrors,
			m.OpenBrackets, m.MatrixEntries, m.MatrixStates, m.RealizedPnL, m.BenchmarkPnL)
	}
	return m
}

// Decision counts a sizing outcome ("approved" or a rejection reason).
func (m *Metrics) Decision(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

// BracketEvent counts a lifecycle event.
func (m *Metrics) BracketEvent(event string) {
	if m == nil {
		return
	}
	m.BracketEvents.WithLabelValues(event).Inc()
}

// StateObserved counts an encoded label.
func (m *Metrics) StateObserved(mode string) {
	if m == nil {
		return
	}
	m.States.WithLabelValues(mode).Inc()
}

// ResolveError counts an unresolvable candidate.
func (m *Metrics) ResolveError() {
	if m == nil {
		return
	}
	m.ResolveErrors.Inc()
}

// SetOpenBrackets records the number of active brackets.
func (m *Metrics) SetOpenBrackets(n int) {
	if m == nil {
		return
	}
	m.OpenBrackets.Set(float64(n))
}

// SetMatrix records the matrix dimensions.
func (m *Metrics) SetMatrix(states, entries int) {
	if m == nil {
		return
	}
	m.MatrixStates.Set(float64(states))
	m.MatrixEntries.Set(float64(entries))
}

// SetRealizedPnL records realized PnL.
func (m *Metrics) SetRealizedPnL(v float64) {
	if m == nil {
		return
	}
	m.RealizedPnL.Set(v)
}

// SetBenchmarkPnL records the buy-and-hold PnL.
func (m *Metrics) SetBenchmarkPnL(v float64) {
	if m == nil {
		return
	}
	m.BenchmarkPnL.Set(v)
}
