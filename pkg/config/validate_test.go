package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(MinimalConfig()); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	err := Validate(&Config{})
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) < 2 {
		t.Errorf("expected multiple errors, got %d", len(verr.Errors))
	}
	if !strings.Contains(verr.Error(), "errors:") {
		t.Errorf("expected multi-error message, got %q", verr.Error())
	}
}

func TestValidate_Fields(t *testing.T) {
	no := false
	bad := 9

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }, "server.listen_address"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout"},
		{"unknown storage backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = "sqlite"; c.Storage.SQLite.Path = "" }, "storage.sqlite.path"},
		{"unknown record backend", func(c *Config) { c.Records.Backend = "mysql" }, "records.backend"},
		{"watch on memory formats", func(c *Config) { c.Formats.Watch = true }, "formats.watch"},
		{"zero retention", func(c *Config) { c.Files.RetentionDays = -1 }, "files.retention_days"},
		{"zero chunk size", func(c *Config) { c.Export.ChunkSize = -5 }, "export.chunk_size"},
		{"price decimals out of range", func(c *Config) { c.Export.PriceDecimals = &bad }, "export.price_decimals"},
		{"unknown timezone", func(c *Config) { c.Export.Timezone = "Mars/Olympus" }, "export.timezone"},
		{"unknown queue", func(c *Config) { c.Queue.Backend = "sqs" }, "queue.backend"},
		{"short cleanup interval", func(c *Config) { c.Schedule.CleanupInterval = time.Second }, "schedule.cleanup_interval"},
		{"auto export record type", func(c *Config) {
			c.Schedule.AutoExports = []AutoExportConfig{{RecordType: "products", Method: "local"}}
		}, "schedule.auto_exports[0].record_type"},
		{"duplicate auto export", func(c *Config) {
			c.Schedule.AutoExports = []AutoExportConfig{
				{RecordType: "orders", Method: "local"},
				{RecordType: "orders", Method: "email"},
			}
		}, "schedule.auto_exports[1].record_type"},
		{"auto export method", func(c *Config) {
			c.Schedule.AutoExports = []AutoExportConfig{{RecordType: "orders", Method: "fax"}}
		}, "schedule.auto_exports[0].method"},
		{"email provider", func(c *Config) { c.Transfer.Email.Provider = "postmark" }, "transfer.email.provider"},
		{"relative http url", func(c *Config) { c.Transfer.HTTP.URL = "/upload" }, "transfer.http.url"},
		{"active ftp", func(c *Config) { c.Transfer.FTP.Passive = &no }, "transfer.ftp.passive"},
		{"sftp without host key policy", func(c *Config) { c.Transfer.SFTP.Host = "files.example.com" }, "transfer.sftp.known_hosts_file"},
		{"logging level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"redact pattern", func(c *Config) {
			c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "bad", Pattern: "[unclosed"}}
		}, "telemetry.logging.redact_patterns[0].pattern"},
		{"metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error on %s", tt.wantField)
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidate_SFTPInsecureOptIn(t *testing.T) {
	cfg := MinimalConfig()
	cfg.Transfer.SFTP.Host = "files.example.com"
	cfg.Transfer.SFTP.InsecureIgnoreHostKey = true
	if err := Validate(cfg); err != nil {
		t.Errorf("expected explicit opt-in to validate, got %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ValidationError
		want string
	}{
		{"empty", ValidationError{}, "configuration validation failed"},
		{"single", ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}, "configuration validation failed: a: bad"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("%s: Error() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
