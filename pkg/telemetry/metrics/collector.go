package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/courier/pkg/config"
)

// Collector is the entry point for all Prometheus metrics of courier. It
// implements job.Observer, so the job manager reports to it directly.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry
	enabled  bool

	exportMetrics   *ExportMetrics
	transferMetrics *TransferMetrics
	httpMetrics     *HTTPMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is used.
//
// Example:
//
//	cfg := &config.MetricsConfig{Namespace: "courier"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.ChunkDurationBuckets) == 0 {
		cfg.ChunkDurationBuckets = config.DefaultChunkDurationBuckets
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		enabled:         config.Bool(cfg.Enabled, config.DefaultMetricsEnabled),
		exportMetrics:   NewExportMetrics(cfg, registry),
		transferMetrics: NewTransferMetrics(cfg, registry),
		httpMetrics:     NewHTTPMetrics(cfg, registry),
	}
}

// JobStarted records a newly created export job.
func (c *Collector) JobStarted(recordType string) {
	if !c.enabled {
		return
	}
	c.exportMetrics.RecordStarted()
}

// JobFinished records a job reaching a final status: completed, failed or
// cancelled.
func (c *Collector) JobFinished(recordType, status string) {
	if !c.enabled {
		return
	}
	c.exportMetrics.RecordFinished(recordType, status)
}

// ChunkWritten records one processed chunk.
func (c *Collector) ChunkWritten(recordType string, rows, skipped int, d time.Duration) {
	if !c.enabled {
		return
	}
	c.exportMetrics.RecordChunk(recordType, rows, skipped, d)
}

// TransferFinished records the outcome of one transfer attempt.
func (c *Collector) TransferFinished(method, status string) {
	if !c.enabled {
		return
	}
	c.transferMetrics.RecordTransfer(method, status)
}

// RecordHTTPRequest records one HTTP API request.
func (c *Collector) RecordHTTPRequest(method, route string, code int, d time.Duration) {
	if !c.enabled {
		return
	}
	c.httpMetrics.RecordRequest(method, route, code, d)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
