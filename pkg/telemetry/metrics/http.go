package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/courier/pkg/config"
)

// HTTPMetrics tracks the HTTP API.
//
// Metrics:
//   - courier_http_requests_total: Requests by method, route pattern and status code
//   - courier_http_request_duration_seconds: Request duration by method and route pattern
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP API requests",
			},
			[]string{"method", "route", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP API requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	registry.MustRegister(hm.requestsTotal, hm.requestDuration)
	return hm
}

// RecordRequest records one request. route is the matched route pattern,
// never the raw path, to keep cardinality bounded.
func (hm *HTTPMetrics) RecordRequest(method, route string, code int, d time.Duration) {
	hm.requestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	hm.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
