package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.ListenAddress != DefaultListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
				}
				if cfg.Server.WriteTimeout != DefaultWriteTimeout {
					t.Errorf("expected write timeout %v, got %v", DefaultWriteTimeout, cfg.Server.WriteTimeout)
				}
				if cfg.Storage.Backend != DefaultStorageBackend {
					t.Errorf("expected storage backend %q, got %q", DefaultStorageBackend, cfg.Storage.Backend)
				}
				if !Bool(cfg.Storage.SQLite.WALMode, false) {
					t.Error("expected WAL mode enabled")
				}
				if cfg.Files.RetentionDays != DefaultFilesRetentionDays {
					t.Errorf("expected retention days %d, got %d", DefaultFilesRetentionDays, cfg.Files.RetentionDays)
				}
				if cfg.Export.ChunkSize != DefaultExportChunkSize {
					t.Errorf("expected chunk size %d, got %d", DefaultExportChunkSize, cfg.Export.ChunkSize)
				}
				if cfg.Export.PriceDecimals == nil || *cfg.Export.PriceDecimals != DefaultExportPriceDecimals {
					t.Errorf("expected price decimals %d, got %v", DefaultExportPriceDecimals, cfg.Export.PriceDecimals)
				}
				if !Bool(cfg.Export.IncludeHeader, false) {
					t.Error("expected include header enabled")
				}
				if cfg.Queue.Backend != DefaultQueueBackend {
					t.Errorf("expected queue backend %q, got %q", DefaultQueueBackend, cfg.Queue.Backend)
				}
				if cfg.Transfer.Timeout != DefaultTransferTimeout {
					t.Errorf("expected transfer timeout %v, got %v", DefaultTransferTimeout, cfg.Transfer.Timeout)
				}
				if !Bool(cfg.Transfer.FTP.Passive, false) {
					t.Error("expected passive FTP")
				}
				if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
					t.Errorf("expected logging level %q, got %q", DefaultLoggingLevel, cfg.Telemetry.Logging.Level)
				}
				if len(cfg.Telemetry.Metrics.ChunkDurationBuckets) != len(DefaultChunkDurationBuckets) {
					t.Errorf("expected default chunk buckets, got %v", cfg.Telemetry.Metrics.ChunkDurationBuckets)
				}
			},
		},
		{
			name: "explicit values are kept",
			input: Config{
				Server:  ServerConfig{ListenAddress: "0.0.0.0:9000", ReadTimeout: 5 * time.Second},
				Export:  ExportConfig{ChunkSize: 25, PriceDecimals: intPtr(0), IncludeHeader: boolPtr(false)},
				Storage: StorageConfig{SQLite: SQLiteConfig{WALMode: boolPtr(false)}},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.ListenAddress != "0.0.0.0:9000" {
					t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
				}
				if cfg.Server.ReadTimeout != 5*time.Second {
					t.Errorf("read timeout overwritten: %v", cfg.Server.ReadTimeout)
				}
				if cfg.Export.ChunkSize != 25 {
					t.Errorf("chunk size overwritten: %d", cfg.Export.ChunkSize)
				}
				if *cfg.Export.PriceDecimals != 0 {
					t.Errorf("explicit zero decimals overwritten: %d", *cfg.Export.PriceDecimals)
				}
				if Bool(cfg.Export.IncludeHeader, true) {
					t.Error("explicit include_header false overwritten")
				}
				if Bool(cfg.Storage.SQLite.WALMode, true) {
					t.Error("explicit wal_mode false overwritten")
				}
			},
		},
		{
			name: "auto exports inherit method and header",
			input: Config{
				Export:   ExportConfig{IncludeHeader: boolPtr(false)},
				Schedule: ScheduleConfig{AutoExports: []AutoExportConfig{{RecordType: "orders", IntervalMinutes: 60}}},
			},
			check: func(t *testing.T, cfg *Config) {
				ae := cfg.Schedule.AutoExports[0]
				if ae.Method != DefaultAutoExportMethod {
					t.Errorf("expected method %q, got %q", DefaultAutoExportMethod, ae.Method)
				}
				if ae.IncludeHeader == nil || *ae.IncludeHeader {
					t.Error("expected include header inherited as false")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	first := cfg.Export
	ApplyDefaults(&cfg)

	if cfg.Export.ChunkSize != first.ChunkSize || cfg.Export.DateFormat != first.DateFormat {
		t.Errorf("second ApplyDefaults changed export config: %+v -> %+v", first, cfg.Export)
	}
}

func TestDefault_Validates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}
