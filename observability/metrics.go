package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for API calls.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type apiMetrics struct {
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	apiMetricsOnce sync.Once
	apiRegistry    *apiMetrics
)

// API returns the lazily-initialised collectors for lending API calls,
// labelled by lending operation and the ledger error code each call ended
// with.
func API() *apiMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &apiMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "api",
				Name:      "calls_total",
				Help:      "Lending API calls by operation, outcome and ledger error code.",
			}, []string{"operation", "outcome", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lend",
				Subsystem: "api",
				Name:      "call_duration_seconds",
				Help:      "Latency of lending API calls by operation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "api",
				Name:      "throttled_total",
				Help:      "Calls rejected by the rate limiter, by whether the caller was authenticated.",
			}, []string{"caller"}),
		}
		prometheus.MustRegister(apiRegistry.calls, apiRegistry.latency, apiRegistry.throttles)
	})
	return apiRegistry
}

// OutcomeFor classifies an HTTP status.
func OutcomeFor(status int) string {
	switch {
	case status >= 500:
		return OutcomeFailed
	case status >= 400:
		return OutcomeRejected
	default:
		return OutcomeOK
	}
}

// Observe records one call. code is the ledger error code written to the
// response, empty on success.
func (m *apiMetrics) Observe(operation string, status int, code string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	if code == "" {
		code = "none"
	}
	m.calls.WithLabelValues(operation, OutcomeFor(status), code).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordThrottle counts a rate-limited call. authenticated distinguishes
// per-address buckets from per-IP ones.
func (m *apiMetrics) RecordThrottle(authenticated bool) {
	if m == nil {
		return
	}
	caller := "anonymous"
	if authenticated {
		caller = "authenticated"
	}
	m.throttles.WithLabelValues(caller).Inc()
}
