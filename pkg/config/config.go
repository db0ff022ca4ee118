package config

import "time"

// Config is the root configuration structure for courier.
// It contains the HTTP server, storage backends, export settings, the
// queue, the scheduler, transfer targets and telemetry.
type Config struct {
	// Server contains HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Storage contains configuration for the export job store.
	Storage StorageConfig `yaml:"storage"`

	// Records contains configuration for the record store exports read from.
	Records RecordsConfig `yaml:"records"`

	// Formats contains configuration for the custom format store.
	Formats FormatsConfig `yaml:"formats"`

	// Files contains configuration for the export file area.
	Files FilesConfig `yaml:"files"`

	// Export contains generation and job processing settings.
	Export ExportConfig `yaml:"export"`

	// Queue contains configuration for the job queue.
	Queue QueueConfig `yaml:"queue"`

	// Schedule contains recurring auto export and cleanup settings.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Transfer contains settings for every delivery method.
	Transfer TransferConfig `yaml:"transfer"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Downloads of large exports need a generous value.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig selects and configures the export job store.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite job store settings.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite database settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/jobs.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecordsConfig selects the record store.
type RecordsConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite record database.
	// Default: "data/records.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// FormatsConfig configures where custom formats are kept.
type FormatsConfig struct {
	// Backend is "memory" or "yaml".
	// Default: "yaml"
	Backend string `yaml:"backend"`

	// Path is the YAML format file.
	// Default: "data/formats.yaml"
	Path string `yaml:"path"`

	// Watch reloads the format file when it is edited externally.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces bursts of file events.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// FilesConfig configures the export file area.
type FilesConfig struct {
	// Directory holds generated export files. It is protected against
	// directory listing.
	// Default: "data/exports"
	Directory string `yaml:"directory"`

	// RetentionDays is the age after which exports are removed.
	// Default: 14
	RetentionDays int `yaml:"retention_days"`
}

// ExportConfig contains generation and job processing settings.
type ExportConfig struct {
	// ChunkSize is the number of records processed per job tick.
	// Default: 100
	ChunkSize int `yaml:"chunk_size"`

	// Workers is the number of jobs processed in parallel.
	// Default: 2
	Workers int `yaml:"workers"`

	// LeaseTTL bounds how long a worker may hold a job.
	// Default: 5m
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// PriceDecimals is the number of decimals for monetary values.
	// Default: 2
	PriceDecimals *int `yaml:"price_decimals"`

	// DateFormat is a Go time layout for dates.
	// Default: "2006-01-02 15:04:05"
	DateFormat string `yaml:"date_format"`

	// Timezone converts dates before formatting, e.g. "Europe/Berlin".
	// Empty keeps dates as stored.
	Timezone string `yaml:"timezone"`

	// IncludeHeader writes a header row when a request does not say.
	// Default: true
	IncludeHeader *bool `yaml:"include_header"`

	// AddBOM prefixes exports with a UTF-8 byte order mark.
	// Default: false
	AddBOM bool `yaml:"add_bom"`

	// LegacyImportItemColumns is the number of fixed item columns of the
	// legacy import format.
	// Default: 10
	LegacyImportItemColumns int `yaml:"legacy_import_item_columns"`
}

// QueueConfig selects the job queue.
type QueueConfig struct {
	// Backend is "memory" or "redis". Use redis when several courier
	// processes share one job store.
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Redis contains Redis queue settings.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// DialTimeout bounds connection setup.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Prefix namespaces the queue keys.
	// Default: "courier:exports"
	Prefix string `yaml:"prefix"`
}

// ScheduleConfig contains recurring export settings.
type ScheduleConfig struct {
	// Enabled starts the scheduler with the daemon.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// CleanupInterval is how often expired exports are removed.
	// Default: 1h
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// AutoExports lists recurring exports per record type.
	AutoExports []AutoExportConfig `yaml:"auto_exports"`
}

// AutoExportConfig configures the recurring export of one record type.
type AutoExportConfig struct {
	// RecordType is "orders" or "customers".
	RecordType string `yaml:"record_type"`

	// Format is the format key. Empty uses the active format.
	Format string `yaml:"format"`

	// Method is the delivery method.
	// Default: "local"
	Method string `yaml:"method"`

	// IntervalMinutes between runs. Zero disables the auto export.
	IntervalMinutes int `yaml:"interval_minutes"`

	// Statuses limits orders to these statuses.
	Statuses []string `yaml:"statuses"`

	// IncludeHeader writes a header row.
	// Default: true
	IncludeHeader *bool `yaml:"include_header"`
}

// TransferConfig contains settings for every delivery method.
type TransferConfig struct {
	// Timeout bounds one transfer attempt.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	Email EmailConfig `yaml:"email"`
	HTTP  HTTPConfig  `yaml:"http"`
	FTP   FTPConfig   `yaml:"ftp"`
	SFTP  SFTPConfig  `yaml:"sftp"`
}

// EmailConfig configures the email method.
type EmailConfig struct {
	// Provider is "smtp", "mailgun" or "sendgrid".
	// Default: "smtp"
	Provider string   `yaml:"provider"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`

	// Subject and Body accept {file_name}, {record_type}, {job_id} and {date}.
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`

	SMTP     SMTPConfig     `yaml:"smtp"`
	Mailgun  MailgunConfig  `yaml:"mailgun"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
}

// SMTPConfig contains SMTP server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ImplicitTLS connects with TLS from the start (port 465).
	ImplicitTLS bool `yaml:"implicit_tls"`
}

// MailgunConfig contains Mailgun API settings.
type MailgunConfig struct {
	Domain string `yaml:"domain"`
	APIKey string `yaml:"api_key"`
	EU     bool   `yaml:"eu"`
}

// SendGridConfig contains SendGrid API settings.
type SendGridConfig struct {
	APIKey string `yaml:"api_key"`
}

// HTTPConfig configures the http_post method.
type HTTPConfig struct {
	URL         string            `yaml:"url"`
	ContentType string            `yaml:"content_type"`
	Headers     map[string]string `yaml:"headers"`
}

// FTPConfig configures the ftp and ftps methods.
type FTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Directory string `yaml:"directory"`

	// Passive selects passive data connections. Active mode is not
	// supported.
	// Default: true
	Passive *bool `yaml:"passive"`

	DisableEPSV        bool `yaml:"disable_epsv"`
	ImplicitTLS        bool `yaml:"implicit_tls"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SFTPConfig configures the sftp method.
type SFTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`

	Password       string `yaml:"password"`
	PrivateKeyFile string `yaml:"private_key_file"`
	Passphrase     string `yaml:"passphrase"`

	KnownHostsFile        string `yaml:"known_hosts_file"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`

	Directory string `yaml:"directory"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts customer e-mail addresses, phone numbers and
	// transfer credentials from logs.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "courier"
	Namespace string `yaml:"namespace"`

	// ChunkDurationBuckets defines histogram buckets for chunk duration (seconds).
	// Default: [0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	ChunkDurationBuckets []float64 `yaml:"chunk_duration_buckets"`
}

// Bool returns the value of an optional flag, or def when it is unset.
func Bool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
