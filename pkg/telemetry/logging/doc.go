// Package logging configures structured logging for courier.
//
// The package wraps log/slog and adds:
//   - JSON and text output with a configurable level
//   - Redaction of customer e-mail addresses, phone numbers and transfer
//     credentials when RedactPII is set
//   - Context fields for the request, export job, record type and phase
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithJobID(ctx, job.ID)
//	logging.FromContext(ctx).Info("Chunk written", "rows", 100)
//
// Redaction runs inside the slog handler, so package loggers created from
// slog.Default() after SetDefault are redacted as well.
package logging
