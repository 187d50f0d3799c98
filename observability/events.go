package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"crosslend/core/events"
)

type eventMetrics struct {
	emitted   *prometheus.CounterVec
	sequences *prometheus.GaugeVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events. It
// implements events.Emitter so it can sit beside the event store.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			sequences: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lend",
				Subsystem: "attest",
				Name:      "last_sequence",
				Help:      "Last consumed attestation sequence per source chain.",
			}, []string{"chain"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.sequences)
	})
	return eventRegistry
}

func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
	if evt.EventType() != events.TypeCollateralDeposited {
		return
	}
	rendered := evt.Event()
	chain := rendered.Attribute("sourceChain")
	if chain == "" {
		return
	}
	if seq, err := strconv.ParseUint(rendered.Attribute("sequence"), 10, 64); err == nil {
		m.sequences.WithLabelValues(chain).Set(float64(seq))
	}
}
