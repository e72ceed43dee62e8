// Package metrics provides Prometheus metrics for the orchestration
// engine. It satisfies the gateway and cycle observer interfaces.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	DecisionCallsTotal   *prometheus.CounterVec
	DecisionCallDuration prometheus.Histogram
	CyclesTotal          prometheus.Counter
	CycleDuration        prometheus.Histogram
	Balance              prometheus.Gauge
	Workers              prometheus.Gauge
	HiresTotal           prometheus.Counter
	DismissalsTotal      prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		DecisionCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_decision_calls_total",
				Help: "Total decision API calls by outcome kind.",
			},
			[]string{"kind"},
		),
		DecisionCallDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engine_decision_call_duration_seconds",
				Help:    "Decision API call duration including retries.",
				Buckets: prometheus.DefBuckets,
			},
		),
		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_cycles_total",
				Help: "Total simulation cycles run.",
			},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engine_cycle_duration_seconds",
				Help:    "Wall-clock duration of a full cycle.",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		Balance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_balance",
				Help: "Ledger balance after the latest settlement.",
			},
		),
		Workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_workers",
				Help: "Current worker registry size.",
			},
		),
		HiresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_hires_total",
				Help: "Total workers hired by the staffing pass.",
			},
		),
		DismissalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_dismissals_total",
				Help: "Total workers dismissed by autoscale-down.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.DecisionCallsTotal)
	reg.MustRegister(m.DecisionCallDuration)
	reg.MustRegister(m.CyclesTotal)
	reg.MustRegister(m.CycleDuration)
	reg.MustRegister(m.Balance)
	reg.MustRegister(m.Workers)
	reg.MustRegister(m.HiresTotal)
	reg.MustRegister(m.DismissalsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDecisionCall records one finished decision API call.
func (m *Metrics) ObserveDecisionCall(kind string, elapsed time.Duration) {
	m.DecisionCallsTotal.WithLabelValues(kind).Inc()
	m.DecisionCallDuration.Observe(elapsed.Seconds())
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(elapsed time.Duration, balance float64) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(elapsed.Seconds())
	m.Balance.Set(balance)
}

// SetWorkers updates the worker registry gauge.
func (m *Metrics) SetWorkers(n int) {
	m.Workers.Set(float64(n))
}

// WorkerHired counts one staffing-pass hire.
func (m *Metrics) WorkerHired() {
	m.HiresTotal.Inc()
}

// WorkerDismissed counts one autoscale-down dismissal.
func (m *Metrics) WorkerDismissed() {
	m.DismissalsTotal.Inc()
}
