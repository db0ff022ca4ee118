package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(cfg)...)
	errs = append(errs, validateExport(&cfg.Export, &cfg.Files)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateSchedule(&cfg.Schedule)...)
	errs = append(errs, validateTransfer(&cfg.Transfer)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	for field, d := range map[string]time.Duration{
		"server.read_timeout":     cfg.ReadTimeout,
		"server.write_timeout":    cfg.WriteTimeout,
		"server.idle_timeout":     cfg.IdleTimeout,
		"server.shutdown_timeout": cfg.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, FieldError{Field: field, Message: "timeout must be positive"})
		}
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	return sortFieldErrors(errs)
}

func validateStorage(cfg *Config) []FieldError {
	var errs []FieldError

	switch cfg.Storage.Backend {
	case "memory":
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Storage.Backend),
		})
	}

	switch cfg.Records.Backend {
	case "memory":
	case "sqlite":
		if cfg.Records.Path == "" {
			errs = append(errs, FieldError{
				Field:   "records.path",
				Message: "record database path is required when backend is 'sqlite'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "records.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Records.Backend),
		})
	}

	switch cfg.Formats.Backend {
	case "memory":
		if cfg.Formats.Watch {
			errs = append(errs, FieldError{
				Field:   "formats.watch",
				Message: "watch requires the 'yaml' backend",
			})
		}
	case "yaml":
		if cfg.Formats.Path == "" {
			errs = append(errs, FieldError{
				Field:   "formats.path",
				Message: "format file path is required when backend is 'yaml'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "formats.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'yaml'", cfg.Formats.Backend),
		})
	}
	return errs
}

func validateExport(cfg *ExportConfig, files *FilesConfig) []FieldError {
	var errs []FieldError

	if files.Directory == "" {
		errs = append(errs, FieldError{Field: "files.directory", Message: "export directory is required"})
	}
	if files.RetentionDays < 1 {
		errs = append(errs, FieldError{Field: "files.retention_days", Message: "retention days must be at least 1"})
	}
	if cfg.ChunkSize < 1 {
		errs = append(errs, FieldError{Field: "export.chunk_size", Message: "chunk size must be at least 1"})
	}
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "export.workers", Message: "workers must be at least 1"})
	}
	if cfg.LeaseTTL < time.Second {
		errs = append(errs, FieldError{Field: "export.lease_ttl", Message: "lease TTL must be at least 1s"})
	}
	if cfg.PriceDecimals != nil && (*cfg.PriceDecimals < 0 || *cfg.PriceDecimals > 8) {
		errs = append(errs, FieldError{Field: "export.price_decimals", Message: "price decimals must be between 0 and 8"})
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, FieldError{
				Field:   "export.timezone",
				Message: fmt.Sprintf("unknown timezone %q", cfg.Timezone),
			})
		}
	}
	if cfg.LegacyImportItemColumns < 1 {
		errs = append(errs, FieldError{
			Field:   "export.legacy_import_item_columns",
			Message: "legacy import item columns must be at least 1",
		})
	}
	return errs
}

func validateQueue(cfg *QueueConfig) []FieldError {
	switch cfg.Backend {
	case "memory":
		return nil
	case "redis":
		if cfg.Redis.Addr == "" {
			return []FieldError{{Field: "queue.redis.addr", Message: "Redis address is required when backend is 'redis'"}}
		}
		return nil
	default:
		return []FieldError{{
			Field:   "queue.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'redis'", cfg.Backend),
		}}
	}
}

var validRecordTypes = map[string]bool{"orders": true, "customers": true}

var validMethods = map[string]bool{
	"local": true, "email": true, "http_post": true, "ftp": true, "ftps": true, "sftp": true,
}

func validateSchedule(cfg *ScheduleConfig) []FieldError {
	var errs []FieldError

	if cfg.CleanupInterval < time.Minute {
		errs = append(errs, FieldError{
			Field:   "schedule.cleanup_interval",
			Message: "cleanup interval must be at least 1m",
		})
	}

	seen := make(map[string]bool)
	for i, ae := range cfg.AutoExports {
		prefix := fmt.Sprintf("schedule.auto_exports[%d]", i)
		if !validRecordTypes[ae.RecordType] {
			errs = append(errs, FieldError{
				Field:   prefix + ".record_type",
				Message: fmt.Sprintf("invalid record type %q: must be 'orders' or 'customers'", ae.RecordType),
			})
		} else if seen[ae.RecordType] {
			errs = append(errs, FieldError{
				Field:   prefix + ".record_type",
				Message: fmt.Sprintf("duplicate auto export for %q", ae.RecordType),
			})
		}
		seen[ae.RecordType] = true

		if !validMethods[ae.Method] {
			errs = append(errs, FieldError{
				Field:   prefix + ".method",
				Message: fmt.Sprintf("invalid method %q", ae.Method),
			})
		}
		if ae.IntervalMinutes < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".interval_minutes",
				Message: "interval must be non-negative",
			})
		}
	}
	return errs
}

func validateTransfer(cfg *TransferConfig) []FieldError {
	var errs []FieldError

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "transfer.timeout", Message: "timeout must be positive"})
	}

	switch cfg.Email.Provider {
	case "smtp", "mailgun", "sendgrid":
	default:
		errs = append(errs, FieldError{
			Field:   "transfer.email.provider",
			Message: fmt.Sprintf("invalid provider %q: must be 'smtp', 'mailgun' or 'sendgrid'", cfg.Email.Provider),
		})
	}

	if cfg.HTTP.URL != "" {
		if u, err := url.Parse(cfg.HTTP.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "transfer.http.url",
				Message: fmt.Sprintf("invalid URL %q: must be an absolute http or https URL", cfg.HTTP.URL),
			})
		}
	}

	if cfg.FTP.Passive != nil && !*cfg.FTP.Passive {
		errs = append(errs, FieldError{
			Field:   "transfer.ftp.passive",
			Message: "active mode FTP is not supported",
		})
	}

	if cfg.SFTP.Host != "" && cfg.SFTP.KnownHostsFile == "" && !cfg.SFTP.InsecureIgnoreHostKey {
		errs = append(errs, FieldError{
			Field:   "transfer.sftp.known_hosts_file",
			Message: "known hosts file is required unless insecure_ignore_host_key is set",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if Bool(cfg.Metrics.Enabled, DefaultMetricsEnabled) && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/' when metrics are enabled",
		})
	}
	return errs
}

// sortFieldErrors orders errors by field so map iteration does not leak
// into messages.
func sortFieldErrors(errs []FieldError) []FieldError {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}
