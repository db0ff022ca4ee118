// Package telemetry groups the observability packages of Courier.
//
//   - logging: structured slog logging with PII redaction and request,
//     job and record type context fields
//   - metrics: Prometheus counters and histograms for export jobs, chunks,
//     transfers and API requests
//   - health: liveness, readiness and version endpoints
//
// Logging is always on. Metrics are enabled by default and served on
// telemetry.metrics.path of the API server.
//
// By default PII is redacted from log output:
//
//   - Emails: jane@example.com → j***@example.com
//   - Phone numbers, IPv4 addresses and bearer tokens are masked
//   - Values of keys such as password, token or api_key become ***
//
// Custom redaction patterns can be configured.
package telemetry
