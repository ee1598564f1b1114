// Package metrics exposes engine counters to Prometheus. A nil *Engine is a
// valid no-op recorder.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payops"

type Engine struct {
	registry        *prometheus.Registry
	routingOutcomes *prometheus.CounterVec
	stepsExecuted   *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	sideEffects     *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	sweepUnits      *prometheus.CounterVec
}

func New() *Engine {
	m := &Engine{
		registry: prometheus.NewRegistry(),
		routingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing evaluations by how the provider was selected",
		}, []string{"matched_by"}),
		stepsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dunning_steps_total",
			Help:      "Dunning steps executed by action and result",
		}, []string{"action", "result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Retry schedules and dunning runs resolved, by reason",
		}, []string{"entity", "reason"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retry attempt outcomes",
		}, []string{"status"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Outbox deliveries by kind and result",
		}, []string{"kind", "result"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one sweep pass",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 300},
		}, []string{"sweep"}),
		sweepUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_units_total",
			Help:      "Units handled by sweeps, by result",
		}, []string{"sweep", "result"}),
	}
	m.registry.MustRegister(
		m.routingOutcomes,
		m.stepsExecuted,
		m.resolutions,
		m.attempts,
		m.sideEffects,
		m.sweepDuration,
		m.sweepUnits,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Engine) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Engine) Registry() *prometheus.Registry { return m.registry }

func (m *Engine) RoutingDecision(matchedBy string) {
	if m == nil {
		return
	}
	m.routingOutcomes.WithLabelValues(matchedBy).Inc()
}

func (m *Engine) StepExecuted(action string, ok bool) {
	if m == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(action, result(ok)).Inc()
}

func (m *Engine) Resolved(entity, reason string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(entity, reason).Inc()
}

func (m *Engine) Attempt(status string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(status).Inc()
}

func (m *Engine) SideEffect(kind string, ok bool) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(kind, result(ok)).Inc()
}

// ObserveSweep records one pass of sweep that started at start.
func (m *Engine) ObserveSweep(sweep string, start time.Time, processed, failed, skipped int) {
	if m == nil {
		return
	}
	m.sweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
	m.sweepUnits.WithLabelValues(sweep, "ok").Add(float64(processed))
	m.sweepUnits.WithLabelValues(sweep, "error").Add(float64(failed))
	m.sweepUnits.WithLabelValues(sweep, "skipped").Add(float64(skipped))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
