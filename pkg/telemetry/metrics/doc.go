// Package metrics provides Prometheus metrics collection for courier.
//
// # Metrics
//
//   - courier_export_jobs_total{record_type,status}
//   - courier_export_rows_total{record_type}
//   - courier_export_records_skipped_total{record_type}
//   - courier_export_chunk_duration_seconds{record_type}
//   - courier_jobs_in_flight
//   - courier_transfers_total{method,status}
//   - courier_http_requests_total{method,route,code}
//   - courier_http_request_duration_seconds{method,route}
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	manager := job.NewManager(job.Deps{..., Observer: collector}, jobCfg)
//	router.Handle("/metrics", collector.Handler())
//
// Collector implements job.Observer. When metrics are disabled it still
// satisfies the interface and records nothing.
package metrics
