package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the ingestion paths.
type IngestMetrics struct {
	ReadingsTotal   *prometheus.CounterVec
	ApplyDuration   *prometheus.HistogramVec
	PersistFailures *prometheus.CounterVec
	SensorsKnown    prometheus.Gauge
}

// NewIngestMetrics creates and registers ingestion metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		ReadingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "readings_total",
				Help:      "Total number of sensor readings received",
			},
			[]string{"source", "result"}, // source: http, amqp; result: created, updated, rejected, failed
		),
		ApplyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "apply_duration_seconds",
				Help:      "Duration of applying a reading to the registry, including the durable write",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		PersistFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "persist_failures_total",
				Help:      "Total number of failed durable writes",
			},
			[]string{"source"},
		),
		SensorsKnown: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "sensors_known",
				Help:      "Number of sensors currently in the registry",
			},
		),
	}

	MustRegister(
		m.ReadingsTotal,
		m.ApplyDuration,
		m.PersistFailures,
		m.SensorsKnown,
	)

	return m
}
