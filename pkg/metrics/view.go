package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ViewMetrics contains Prometheus metrics for view rendering and reconciliation.
type ViewMetrics struct {
	RendersTotal        *prometheus.CounterVec
	EditFallbacks       prometheus.Counter
	TokenDecodeFailures prometheus.Counter
	DroppedEvents       prometheus.Counter
}

// NewViewMetrics creates and registers view metrics.
func NewViewMetrics(namespace string) *ViewMetrics {
	m := &ViewMetrics{
		RendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "renders_total",
				Help:      "Total number of view reconciliations",
			},
			[]string{"screen", "result"}, // result: edited, sent, failed
		),
		EditFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "edit_fallbacks_total",
				Help:      "Total number of edits that fell back to delete-and-resend",
			},
		),
		TokenDecodeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "token_decode_failures_total",
				Help:      "Total number of navigation tokens that failed to decode",
			},
		),
		DroppedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "view",
				Name:      "dropped_events_total",
				Help:      "Total number of inbound events dropped by the access gate",
			},
		),
	}

	MustRegister(
		m.RendersTotal,
		m.EditFallbacks,
		m.TokenDecodeFailures,
		m.DroppedEvents,
	)

	return m
}
