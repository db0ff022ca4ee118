// Package server provides the HTTP API of courier.
//
// Routes:
//
//	POST   /api/exports                      start an export (202, or 200 nothing_to_export)
//	GET    /api/exports                      list jobs (?record_type=&status=&limit=)
//	GET    /api/exports/{id}                 job status and progress
//	DELETE /api/exports/{id}                 cancel or remove a job and its file
//	GET    /api/exports/{id}/download        the CSV of a completed job
//	POST   /api/exports/{id}/transfer        deliver a completed job's file
//	GET    /api/formats/{recordType}         built-in and custom formats
//	POST   /api/formats/{recordType}         save a custom format
//	PUT    /api/formats/{recordType}/active  select the active format
//	DELETE /api/formats/{recordType}/{key}   remove a custom format
//	GET    /health                           liveness
//	GET    /metrics                          Prometheus metrics, when enabled
//
// Errors are JSON ErrorResponse bodies. Domain errors map to statuses in
// errorStatus: unknown jobs and formats are 404, the active format and
// claimed jobs are 409, invalid formats are 422 and failed transfers 502.
//
// Basic usage:
//
//	srv := server.NewServer(&cfg.Server, server.Deps{
//	    Jobs:    manager,
//	    Formats: registry,
//	    Records: recordStore,
//	})
//	err := srv.Start(ctx) // blocks until ctx is cancelled
package server
