package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/jobs.db"
	DefaultSQLiteMaxOpenConns = 4
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Record store defaults
	DefaultRecordsBackend = "sqlite"
	DefaultRecordsPath    = "data/records.db"

	// Format store defaults
	DefaultFormatsBackend       = "yaml"
	DefaultFormatsPath          = "data/formats.yaml"
	DefaultFormatsWatchDebounce = 500 * time.Millisecond

	// File area defaults
	DefaultFilesDirectory     = "data/exports"
	DefaultFilesRetentionDays = 14

	// Export defaults
	DefaultExportChunkSize               = 100
	DefaultExportWorkers                 = 2
	DefaultExportLeaseTTL                = 5 * time.Minute
	DefaultExportPriceDecimals           = 2
	DefaultExportDateFormat              = "2006-01-02 15:04:05"
	DefaultExportIncludeHeader           = true
	DefaultExportLegacyImportItemColumns = 10

	// Queue defaults
	DefaultQueueBackend     = "memory"
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultRedisDialTimeout = 5 * time.Second
	DefaultRedisPrefix      = "courier:exports"

	// Schedule defaults
	DefaultScheduleEnabled         = true
	DefaultScheduleCleanupInterval = time.Hour
	DefaultAutoExportMethod        = "local"

	// Transfer defaults
	DefaultTransferTimeout = 30 * time.Second
	DefaultEmailProvider   = "smtp"
	DefaultSMTPPort        = 587
	DefaultFTPPort         = 21
	DefaultFTPPassive      = true
	DefaultSFTPPort        = 22

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "courier"
)

// DefaultChunkDurationBuckets are the chunk duration histogram buckets.
var DefaultChunkDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.WALMode == nil {
		cfg.Storage.SQLite.WALMode = boolPtr(DefaultSQLiteWALMode)
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Record store defaults
	if cfg.Records.Backend == "" {
		cfg.Records.Backend = DefaultRecordsBackend
	}
	if cfg.Records.Path == "" {
		cfg.Records.Path = DefaultRecordsPath
	}
	if cfg.Records.BusyTimeout == 0 {
		cfg.Records.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Format store defaults
	if cfg.Formats.Backend == "" {
		cfg.Formats.Backend = DefaultFormatsBackend
	}
	if cfg.Formats.Path == "" {
		cfg.Formats.Path = DefaultFormatsPath
	}
	if cfg.Formats.WatchDebounce == 0 {
		cfg.Formats.WatchDebounce = DefaultFormatsWatchDebounce
	}

	// File area defaults
	if cfg.Files.Directory == "" {
		cfg.Files.Directory = DefaultFilesDirectory
	}
	if cfg.Files.RetentionDays == 0 {
		cfg.Files.RetentionDays = DefaultFilesRetentionDays
	}

	// Export defaults
	if cfg.Export.ChunkSize == 0 {
		cfg.Export.ChunkSize = DefaultExportChunkSize
	}
	if cfg.Export.Workers == 0 {
		cfg.Export.Workers = DefaultExportWorkers
	}
	if cfg.Export.LeaseTTL == 0 {
		cfg.Export.LeaseTTL = DefaultExportLeaseTTL
	}
	if cfg.Export.PriceDecimals == nil {
		cfg.Export.PriceDecimals = intPtr(DefaultExportPriceDecimals)
	}
	if cfg.Export.DateFormat == "" {
		cfg.Export.DateFormat = DefaultExportDateFormat
	}
	if cfg.Export.IncludeHeader == nil {
		cfg.Export.IncludeHeader = boolPtr(DefaultExportIncludeHeader)
	}
	if cfg.Export.LegacyImportItemColumns == 0 {
		cfg.Export.LegacyImportItemColumns = DefaultExportLegacyImportItemColumns
	}

	// Queue defaults
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = DefaultQueueBackend
	}
	if cfg.Queue.Redis.Addr == "" {
		cfg.Queue.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Queue.Redis.DialTimeout == 0 {
		cfg.Queue.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if cfg.Queue.Redis.Prefix == "" {
		cfg.Queue.Redis.Prefix = DefaultRedisPrefix
	}

	// Schedule defaults
	if cfg.Schedule.Enabled == nil {
		cfg.Schedule.Enabled = boolPtr(DefaultScheduleEnabled)
	}
	if cfg.Schedule.CleanupInterval == 0 {
		cfg.Schedule.CleanupInterval = DefaultScheduleCleanupInterval
	}
	for i := range cfg.Schedule.AutoExports {
		ae := &cfg.Schedule.AutoExports[i]
		if ae.Method == "" {
			ae.Method = DefaultAutoExportMethod
		}
		if ae.IncludeHeader == nil {
			ae.IncludeHeader = boolPtr(*cfg.Export.IncludeHeader)
		}
	}

	// Transfer defaults
	if cfg.Transfer.Timeout == 0 {
		cfg.Transfer.Timeout = DefaultTransferTimeout
	}
	if cfg.Transfer.Email.Provider == "" {
		cfg.Transfer.Email.Provider = DefaultEmailProvider
	}
	if cfg.Transfer.Email.SMTP.Port == 0 {
		cfg.Transfer.Email.SMTP.Port = DefaultSMTPPort
	}
	if cfg.Transfer.FTP.Port == 0 {
		cfg.Transfer.FTP.Port = DefaultFTPPort
	}
	if cfg.Transfer.FTP.Passive == nil {
		cfg.Transfer.FTP.Passive = boolPtr(DefaultFTPPassive)
	}
	if cfg.Transfer.SFTP.Port == 0 {
		cfg.Transfer.SFTP.Port = DefaultSFTPPort
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.RedactPII == nil {
		cfg.Telemetry.Logging.RedactPII = boolPtr(DefaultLoggingRedactPII)
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(DefaultMetricsEnabled)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.ChunkDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.ChunkDurationBuckets = append([]float64(nil), DefaultChunkDurationBuckets...)
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
