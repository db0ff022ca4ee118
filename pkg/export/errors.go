package export

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned by a RecordStore for a missing record.
	// It is never fatal to an export.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNothingToExport signals that zero identifiers were supplied or
	// resolved. No job is created.
	ErrNothingToExport = errors.New("nothing to export")

	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("export job not found")

	// ErrJobLocked is returned when another worker holds the job's claim.
	ErrJobLocked = errors.New("export job is claimed by another worker")

	// ErrJobCancelled is returned when processing stops on a cancellation request.
	ErrJobCancelled = errors.New("export job cancelled")

	// ErrFormatNotFound is returned when a format key cannot be resolved.
	ErrFormatNotFound = errors.New("export format not found")

	// ErrFormatInUse is returned when deleting the active format of a record type.
	ErrFormatInUse = errors.New("export format is the active format")
)

// StorageError represents an error from a persistence backend (job store,
// format store, file store).
type StorageError struct {
	Backend   string // "sqlite", "memory", "yaml", "local"
	Operation string // "create", "update", "claim", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// RecordStoreError means the record store is unavailable. It is fatal for
// the job that encountered it.
type RecordStoreError struct {
	RecordType RecordType
	Operation  string
	Cause      error
}

// Error implements the error interface.
func (e *RecordStoreError) Error() string {
	return fmt.Sprintf("record store unavailable [type=%s, operation=%s]: %v", e.RecordType, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecordStoreError) Unwrap() error {
	return e.Cause
}

// NewRecordStoreError creates a new RecordStoreError.
func NewRecordStoreError(recordType RecordType, operation string, cause error) *RecordStoreError {
	return &RecordStoreError{
		RecordType: recordType,
		Operation:  operation,
		Cause:      cause,
	}
}

// FormatError describes an invalid format configuration. It is raised before
// any rows are written.
type FormatError struct {
	RecordType RecordType
	Key        string
	Field      string
	Message    string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid format configuration [type=%s, key=%s, field=%s]: %s", e.RecordType, e.Key, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid format configuration [type=%s, key=%s]: %s", e.RecordType, e.Key, e.Message)
}

// NewFormatError creates a new FormatError.
func NewFormatError(recordType RecordType, key, field, message string) *FormatError {
	return &FormatError{
		RecordType: recordType,
		Key:        key,
		Field:      field,
		Message:    message,
	}
}

// TransferError is a failed delivery attempt. It carries enough context to
// be shown to a human without log access.
type TransferError struct {
	Method string
	Target string
	Cause  error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if e.Cause == nil {
		return "transfer failed, see logs"
	}
	if e.Target == "" {
		return fmt.Sprintf("%s transfer failed: %v", e.Method, e.Cause)
	}
	return fmt.Sprintf("%s transfer to %s failed: %v", e.Method, e.Target, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TransferError) Unwrap() error {
	return e.Cause
}

// NewTransferError creates a new TransferError.
func NewTransferError(method, target string, cause error) *TransferError {
	return &TransferError{
		Method: method,
		Target: target,
		Cause:  cause,
	}
}

// JobError wraps a fatal processing error with the job and phase it
// happened in.
type JobError struct {
	JobID string
	Phase string // "resolve", "generate", "write", "commit", "finalize"
	Cause error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("export job error [job_id=%s, phase=%s]: %v", e.JobID, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *JobError) Unwrap() error {
	return e.Cause
}

// NewJobError creates a new JobError.
func NewJobError(jobID, phase string, cause error) *JobError {
	return &JobError{
		JobID: jobID,
		Phase: phase,
		Cause: cause,
	}
}

// IsFatal reports whether err must abort the job: everything except a
// per-record not-found.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrRecordNotFound)
}
