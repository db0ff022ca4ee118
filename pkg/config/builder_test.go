package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with in-memory backends. The
// resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Storage: StorageConfig{Backend: "memory"},
		Records: RecordsConfig{Backend: "memory"},
		Formats: FormatsConfig{Backend: "memory"},
	}
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithSQLite switches the job store to SQLite at path.
func (b *ConfigBuilder) WithSQLite(path string) *ConfigBuilder {
	b.cfg.Storage.Backend = "sqlite"
	b.cfg.Storage.SQLite.Path = path
	return b
}

// WithRedisQueue switches the queue to Redis.
func (b *ConfigBuilder) WithRedisQueue(addr string) *ConfigBuilder {
	b.cfg.Queue.Backend = "redis"
	b.cfg.Queue.Redis.Addr = addr
	return b
}

// WithAutoExport adds a recurring export.
func (b *ConfigBuilder) WithAutoExport(recordType, method string, interval time.Duration) *ConfigBuilder {
	include := true
	b.cfg.Schedule.AutoExports = append(b.cfg.Schedule.AutoExports, AutoExportConfig{
		RecordType:      recordType,
		Method:          method,
		IntervalMinutes: int(interval / time.Minute),
		IncludeHeader:   &include,
	})
	return b
}

// WithFilesDirectory sets the export file area.
func (b *ConfigBuilder) WithFilesDirectory(dir string) *ConfigBuilder {
	b.cfg.Files.Directory = dir
	return b
}

// MinimalConfig returns a minimal valid configuration.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
