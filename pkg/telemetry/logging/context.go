package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey contextKey = "request_id"

	// JobIDKey is the context key for export job IDs.
	JobIDKey contextKey = "job_id"

	// RecordTypeKey is the context key for the exported record type.
	RecordTypeKey contextKey = "record_type"

	// PhaseKey is the context key for the job phase being executed.
	PhaseKey contextKey = "phase"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithJobID adds an export job ID to the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// GetJobID retrieves the export job ID from the context.
func GetJobID(ctx context.Context) string {
	return stringValue(ctx, JobIDKey)
}

// WithRecordType adds the record type to the context.
func WithRecordType(ctx context.Context, recordType string) context.Context {
	return context.WithValue(ctx, RecordTypeKey, recordType)
}

// GetRecordType retrieves the record type from the context.
func GetRecordType(ctx context.Context) string {
	return stringValue(ctx, RecordTypeKey)
}

// WithPhase adds the job phase to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, PhaseKey, phase)
}

// GetPhase retrieves the job phase from the context.
func GetPhase(ctx context.Context) string {
	return stringValue(ctx, PhaseKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the fields stored in ctx as key-value pairs
// suitable for slog.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range []contextKey{RequestIDKey, JobIDKey, RecordTypeKey, PhaseKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}

// FromContext returns the default slog logger carrying the fields stored in
// ctx.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if fields := extractContextFields(ctx); len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return logger
}
