package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/courier/pkg/config"
)

// TransferMetrics tracks deliveries of export files.
//
// Metrics:
//   - courier_transfers_total: Transfer attempts by method and outcome
type TransferMetrics struct {
	transfersTotal *prometheus.CounterVec
}

// NewTransferMetrics creates and registers transfer metrics.
func NewTransferMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TransferMetrics {
	tm := &TransferMetrics{
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "transfers_total",
				Help:      "Total number of transfer attempts",
			},
			[]string{"method", "status"},
		),
	}
	registry.MustRegister(tm.transfersTotal)
	return tm
}

// RecordTransfer records one attempt.
func (tm *TransferMetrics) RecordTransfer(method, status string) {
	tm.transfersTotal.WithLabelValues(method, status).Inc()
}
