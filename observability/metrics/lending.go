package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"crosslend/native/common"
)

// LendingMetrics records the outcome of every lending transition.
type LendingMetrics struct {
	transitions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide lending metrics registry.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "engine",
				Name:      "transitions_total",
				Help:      "Count of lending transitions by operation and result code.",
			}, []string{"operation", "outcome", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lend",
				Subsystem: "engine",
				Name:      "transition_duration_seconds",
				Help:      "Latency of lending transitions including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			lendingRegistry.transitions,
			lendingRegistry.latency,
		)
	})
	return lendingRegistry
}

// ObserveTransition implements lending.Observer.
func (m *LendingMetrics) ObserveTransition(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome, code := "committed", "ok"
	if err != nil {
		outcome = string(common.CategoryOf(err))
		code = common.CodeOf(err)
	}
	m.transitions.WithLabelValues(operation, outcome, code).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}
