package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/courier/pkg/config"
)

// ExportMetrics tracks export job processing.
//
// Metrics:
//   - courier_export_jobs_total: Finished jobs by record type and final status
//   - courier_export_rows_total: Rows written by record type
//   - courier_export_records_skipped_total: Records missing at generation time
//   - courier_export_chunk_duration_seconds: Duration of one job tick
//   - courier_jobs_in_flight: Jobs created and not yet finished
type ExportMetrics struct {
	jobsTotal     *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	skippedTotal  *prometheus.CounterVec
	chunkDuration *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
}

// NewExportMetrics creates and registers export metrics with the provided registry.
func NewExportMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ExportMetrics {
	em := &ExportMetrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "export",
				Name:      "jobs_total",
				Help:      "Total number of finished export jobs",
			},
			[]string{"record_type", "status"},
		),

		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "export",
				Name:      "rows_total",
				Help:      "Total number of CSV rows written",
			},
			[]string{"record_type"},
		),

		skippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "export",
				Name:      "records_skipped_total",
				Help:      "Total number of records skipped because they no longer exist",
			},
			[]string{"record_type"},
		),

		chunkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "export",
				Name:      "chunk_duration_seconds",
				Help:      "Duration of one export chunk in seconds",
				Buckets:   cfg.ChunkDurationBuckets,
			},
			[]string{"record_type"},
		),

		jobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "jobs_in_flight",
				Help:      "Number of export jobs queued or processing",
			},
		),
	}

	registry.MustRegister(
		em.jobsTotal,
		em.rowsTotal,
		em.skippedTotal,
		em.chunkDuration,
		em.jobsInFlight,
	)

	return em
}

// RecordStarted counts a new job as in flight.
func (em *ExportMetrics) RecordStarted() {
	em.jobsInFlight.Inc()
}

// RecordFinished records a job reaching status.
func (em *ExportMetrics) RecordFinished(recordType, status string) {
	em.jobsTotal.WithLabelValues(recordType, status).Inc()
	em.jobsInFlight.Dec()
}

// RecordChunk records one processed chunk.
func (em *ExportMetrics) RecordChunk(recordType string, rows, skipped int, d time.Duration) {
	if rows > 0 {
		em.rowsTotal.WithLabelValues(recordType).Add(float64(rows))
	}
	if skipped > 0 {
		em.skippedTotal.WithLabelValues(recordType).Add(float64(skipped))
	}
	em.chunkDuration.WithLabelValues(recordType).Observe(d.Seconds())
}
