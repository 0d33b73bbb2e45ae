package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// Metrics holds the step-loop Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	stuck        prometheus.Counter
	sessions     prometheus.Gauge
	terminations *prometheus.CounterVec
}

// NewMetrics registers the collectors with a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the collectors with reg and serves them from g.
func NewMetricsWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: g,
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steploop_steps_total",
			Help: "Total executed steps by outcome",
		}, []string{"outcome"}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "steploop_step_duration_seconds",
			Help:    "Step duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		stuck: factory.NewCounter(prometheus.CounterOpts{
			Name: "steploop_stuck_detections_total",
			Help: "Total stuck-loop detections",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "steploop_sessions_active",
			Help: "Streaming sessions currently registered",
		}),
		terminations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steploop_terminations_total",
			Help: "Total termination requests that found a session, by mode",
		}, []string{"mode"}),
	}
}

// ObserveStep records one finished step.
func (m *Metrics) ObserveStep(outcome agent.OutcomeKind, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(outcome)).Inc()
	m.stepDuration.Observe(d.Seconds())
}

// StuckDetected records a stuck-loop detection.
func (m *Metrics) StuckDetected() {
	if m == nil {
		return
	}
	m.stuck.Inc()
}

// SetActiveSessions sets the registered session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// Terminated records a termination that found its session.
func (m *Metrics) Terminated(hard bool) {
	if m == nil {
		return
	}
	mode := "soft"
	if hard {
		mode = "hard"
	}
	m.terminations.WithLabelValues(mode).Inc()
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
