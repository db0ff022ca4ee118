// Package export defines the domain model shared by the courier export
// pipeline: typed order and customer records, record identifiers, the record
// store contract consumed by the generator, and the error taxonomy used by
// every export component.
//
// # Architecture
//
// An export runs through five layers:
//
//  1. Format Registry - resolves a format key to a concrete column layout
//  2. Row Generator - turns records into CSV rows for that layout
//  3. Compatibility Layer - adapts rows and headers for legacy formats
//  4. Job Manager - drives chunked, resumable background processing
//  5. Transfer Dispatcher - delivers the finished file to a destination
//
// # Data Flow
//
//	StartExport(ids, options)
//	     ↓
//	Job (queued) → JobQueue
//	     ↓
//	Worker tick: claim job → resolve format → generate chunk → append file
//	     ↓
//	Job (completed | failed)
//	     ↓
//	Transfer Dispatcher (optional, auto-transfer)
//
// # Record Store
//
// The record store is an external collaborator. This package defines the
// RecordStore interface; adapters live in the records subpackage. The only
// write this system performs against a record store is flagging records as
// exported.
//
// # Errors
//
// Record store connectivity failures (RecordStoreError) are fatal to the job.
// ErrRecordNotFound is per-record and never fatal. FormatError surfaces
// before any rows are written. TransferError is recorded on the job's
// transfer status and never rolls back a completed export.
package export
