package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/job"
)

// memoryConfig returns a configuration that touches nothing but a temp dir.
func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Records.Backend = "memory"
	cfg.Formats.Backend = "memory"
	cfg.Queue.Backend = "memory"
	cfg.Files.Directory = filepath.Join(t.TempDir(), "exports")
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestNewApp_MemoryExport(t *testing.T) {
	app := newTestApp(t, memoryConfig(t))
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		if err := app.Records.PutOrder(ctx, &export.OrderRecord{ID: id, Number: id, Status: "completed", Date: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	j, err := app.Manager.StartExport(ctx, job.StartRequest{
		RecordType: export.RecordTypeOrders,
		IDs:        []export.Identifier{{ID: "1"}, {ID: "2"}},
		Options:    job.Options{IncludeHeader: true},
	})
	if err != nil {
		t.Fatalf("StartExport() error = %v", err)
	}
	j, err = app.Manager.Run(ctx, j.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if j.Status != job.StatusCompleted || j.RowsWritten != 2 {
		t.Fatalf("job = %+v, want completed with 2 rows", j)
	}

	path, err := app.Manager.FilePath(j)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, app.Config.Files.Directory) {
		t.Errorf("file %s outside configured directory %s", path, app.Config.Files.Directory)
	}
}

func TestNewApp_SQLiteAndYAML(t *testing.T) {
	dir := t.TempDir()
	cfg := memoryConfig(t)
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(dir, "jobs.db")
	cfg.Records.Backend = "sqlite"
	cfg.Records.Path = filepath.Join(dir, "records.db")
	cfg.Formats.Backend = "yaml"
	cfg.Formats.Path = filepath.Join(dir, "formats.yaml")
	cfg.Formats.Watch = true

	app := newTestApp(t, cfg)
	if app.Watcher == nil {
		t.Error("Watcher should be set for watched yaml formats")
	}
	for _, p := range []string{cfg.Storage.SQLite.Path, cfg.Records.Path} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("database %s not created: %v", p, err)
		}
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewApp_UnsupportedBackend(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"records", func(c *config.Config) { c.Records.Backend = "mysql" }, "records.backend"},
		{"storage", func(c *config.Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"queue", func(c *config.Config) { c.Queue.Backend = "kafka" }, "queue.backend"},
		{"formats", func(c *config.Config) { c.Formats.Backend = "s3" }, "formats.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.mutate(cfg)
			_, err := NewApp(context.Background(), cfg)
			cerr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("NewApp() error = %v, want *ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestApp_SchedulerAndServer(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Schedule.AutoExports = []config.AutoExportConfig{{RecordType: "orders", IntervalMinutes: 10}}
	app := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := app.Scheduler()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if got := s.Entries(); got != 2 {
		t.Errorf("Entries() = %d, want auto export + cleanup", got)
	}

	rec := httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/ready = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := app.Health.Names(); len(got) != 3 {
		t.Errorf("checks = %v, want job_store, record_store, export_dir", got)
	}

	body := bytes.NewBufferString(`{"record_type":"orders","ids":[]}`)
	rec = httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/exports", body))
	var res map[string]string
	json.NewDecoder(rec.Body).Decode(&res)
	if rec.Code != http.StatusOK || res["result"] != "nothing_to_export" {
		t.Errorf("POST /api/exports = %d %v", rec.Code, res)
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	disabled := false
	cfg.Telemetry.Metrics.Enabled = &disabled
	app := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	app.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics = %d, want 404 when disabled", rec.Code)
	}
}

func TestGeneratorOptions(t *testing.T) {
	decimals := 3
	opts, err := GeneratorOptions(&config.ExportConfig{
		PriceDecimals: &decimals,
		DateFormat:    "2006-01-02",
		Timezone:      "UTC",
	})
	if err != nil {
		t.Fatalf("GeneratorOptions() error = %v", err)
	}
	if opts.PriceDecimals != 3 || opts.DateFormat != "2006-01-02" || opts.Location != time.UTC {
		t.Errorf("opts = %+v", opts)
	}

	if _, err := GeneratorOptions(&config.ExportConfig{Timezone: "Mars/Olympus"}); err == nil {
		t.Error("expected error for unknown timezone")
	}

	opts, _ = GeneratorOptions(&config.ExportConfig{})
	if opts.PriceDecimals != 2 || opts.Location != nil {
		t.Errorf("default opts = %+v", opts)
	}
}

func TestTransferConfig(t *testing.T) {
	passive := true
	tc := TransferConfig(&config.TransferConfig{
		Timeout: 5 * time.Second,
		Email: config.EmailConfig{
			Provider: "mailgun",
			To:       []string{"ops@example.com"},
			Mailgun:  config.MailgunConfig{Domain: "mg.example.com", APIKey: "key"},
		},
		FTP:  config.FTPConfig{Host: "ftp.example.com", Passive: &passive},
		SFTP: config.SFTPConfig{Host: "sftp.example.com", KnownHostsFile: "/etc/ssh/known_hosts"},
	})
	if tc.Timeout != 5*time.Second || tc.Email.Mailgun.Domain != "mg.example.com" {
		t.Errorf("email/timeout not mapped: %+v", tc)
	}
	if tc.FTP.Passive != &passive || tc.SFTP.KnownHostsFile != "/etc/ssh/known_hosts" {
		t.Errorf("ftp/sftp not mapped: %+v %+v", tc.FTP, tc.SFTP)
	}
}

func TestAutoExports(t *testing.T) {
	off := false
	cfg := config.Default()
	cfg.Export.AddBOM = true
	cfg.Schedule.AutoExports = []config.AutoExportConfig{
		{RecordType: "orders", IntervalMinutes: 5, Statuses: []string{"completed"}},
		{RecordType: "customers", Method: "sftp", Format: "legacy", IntervalMinutes: 60, IncludeHeader: &off},
	}

	got := AutoExports(cfg)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Method != job.MethodLocal || !got[0].IncludeHeader || !got[0].AddBOM {
		t.Errorf("orders auto export = %+v", got[0])
	}
	if got[1].Method != job.MethodSFTP || got[1].IncludeHeader || got[1].FormatKey != "legacy" {
		t.Errorf("customers auto export = %+v", got[1])
	}
}
