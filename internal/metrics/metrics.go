// Package metrics holds the Prometheus collectors updated by the runtime.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "equilibrium"

// Metrics groups the runtime collectors.
type Metrics struct {
	ticks           prometheus.Counter
	tickDuration    prometheus.Histogram
	messages        *prometheus.CounterVec
	inputErrors     *prometheus.CounterVec
	publishFailures prometheus.Counter
	actuationErrors prometheus.Counter
	controllerState *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Number of poll ticks evaluated.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent evaluating and publishing one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_emitted_total",
			Help:      "Control messages emitted, by controller.",
		}, []string{"controller"}),
		inputErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_errors_total",
			Help:      "Failed or unparseable input reads, by controller.",
		}, []string{"controller"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Batches dropped after the retry policy gave up.",
		}),
		actuationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuation_failures_total",
			Help:      "Ticks in which at least one output write failed.",
		}),
		controllerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "controller_state",
			Help:      "Last emitted value per controller: 1 on or increasing, -1 decreasing, 0 otherwise.",
		}, []string{"controller"}),
	}
	reg.MustRegister(m.ticks, m.tickDuration, m.messages, m.inputErrors, m.publishFailures, m.actuationErrors, m.controllerState)
	return m
}

// Tick records one completed tick.
func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// Emitted records a message and its value for controller.
func (m *Metrics) Emitted(controller string, level float64) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(controller).Inc()
	m.controllerState.WithLabelValues(controller).Set(level)
}

// InputError records a failed read.
func (m *Metrics) InputError(controller string) {
	if m == nil {
		return
	}
	m.inputErrors.WithLabelValues(controller).Inc()
}

// PublishFailure records a dropped batch.
func (m *Metrics) PublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

// ActuationFailure records a tick whose local output writes did not all
// succeed.
func (m *Metrics) ActuationFailure() {
	if m == nil {
		return
	}
	m.actuationErrors.Inc()
}
