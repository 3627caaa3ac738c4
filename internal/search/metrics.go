package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "flightfinder"

// Metrics instruments the query executor. All methods are safe on a nil receiver.
type Metrics struct {
	// ProviderCalls counts remote calls.
	// Labels: provider, result (success, timeout, rate_limited, malformed, server_error, cancelled)
	ProviderCalls *prometheus.CounterVec

	// CacheLookups counts cache reads.
	// Labels: result (hit, stale, miss, error)
	CacheLookups *prometheus.CounterVec

	// QueryOutcomes counts finished queries.
	// Labels: outcome (cached, primary, fallback, stale, failed)
	QueryOutcomes *prometheus.CounterVec

	// CallSeconds measures remote call latency.
	// Labels: provider
	CallSeconds *prometheus.HistogramVec
}

// NewMetrics registers the executor metrics with reg. A nil reg uses a
// private registry, which keeps repeated construction in tests safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		ProviderCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Remote pricing calls by provider and result",
			},
			[]string{"provider", "result"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Price cache lookups by result",
			},
			[]string{"result"},
		),
		QueryOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "executor",
				Name:      "queries_total",
				Help:      "Executed queries by final outcome",
			},
			[]string{"outcome"},
		),
		CallSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "provider",
				Name:      "call_duration_seconds",
				Help:      "Remote pricing call latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
	}
}

func (m *Metrics) call(provider, result string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, result).Inc()
	m.CallSeconds.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) lookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) outcome(outcome string) {
	if m == nil {
		return
	}
	m.QueryOutcomes.WithLabelValues(outcome).Inc()
}
