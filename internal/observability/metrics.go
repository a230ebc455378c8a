package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the service's Prometheus metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics(nil)
//	metrics.TurnCounter.WithLabelValues("ok").Inc()
type Metrics struct {
	// TurnCounter counts processed turn events.
	// Labels: outcome (ok|fallback|empty|terminated|rejected)
	TurnCounter *prometheus.CounterVec

	// GeneratorRequestDuration measures response-generator latency in seconds.
	// Labels: provider
	GeneratorRequestDuration *prometheus.HistogramVec

	// GeneratorRequestCounter counts generator requests.
	// Labels: provider, status (success|error)
	GeneratorRequestCounter *prometheus.CounterVec

	// FallbackCounter counts turns answered with a canned reply.
	// Labels: stage
	FallbackCounter *prometheus.CounterVec

	// ActiveSessions tracks the current number of live call sessions.
	ActiveSessions prometheus.Gauge

	// SweepEvictions counts sessions reclaimed by the idle sweeper.
	SweepEvictions prometheus.Counter

	// HTTPRequestDuration measures webhook handling latency in seconds.
	// Labels: path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with reg (or the default
// registerer when reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dialkit_turns_total",
			Help: "Turn events processed, by outcome.",
		}, []string{"outcome"}),

		GeneratorRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dialkit_generator_request_duration_seconds",
			Help:    "Response generator request latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),

		GeneratorRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dialkit_generator_requests_total",
			Help: "Response generator requests, by provider and status.",
		}, []string{"provider", "status"}),

		FallbackCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dialkit_fallback_replies_total",
			Help: "Turns answered with a canned fallback reply, by stage.",
		}, []string{"stage"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dialkit_active_sessions",
			Help: "Current number of live call sessions.",
		}),

		SweepEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "dialkit_sweep_evictions_total",
			Help: "Idle sessions reclaimed by the sweeper.",
		}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dialkit_http_request_duration_seconds",
			Help:    "Webhook endpoint latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"path", "status_code"}),
	}
}
