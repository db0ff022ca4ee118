package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/filestore"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/generator"
	"mercator-hq/courier/pkg/export/job"
	"mercator-hq/courier/pkg/export/records"
	"mercator-hq/courier/pkg/telemetry/health"
	"mercator-hq/courier/pkg/telemetry/metrics"
)

type testEnv struct {
	server   *Server
	manager  *job.Manager
	registry *format.Registry
	records  *records.MemoryStore
	metrics  *metrics.Collector
}

func newTestEnv(t *testing.T, orders int) *testEnv {
	t.Helper()
	ctx := context.Background()

	recs := records.NewMemoryStore()
	for i := 1; i <= orders; i++ {
		err := recs.PutOrder(ctx, &export.OrderRecord{
			ID:     fmt.Sprint(i),
			Number: fmt.Sprint(1000 + i),
			Date:   time.Date(2025, 1, i, 0, 0, 0, 0, time.UTC),
			Status: "processing",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	files, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	registry := format.NewRegistry(format.NewMemoryStore(), recs)
	collector := metrics.NewCollector(&config.MetricsConfig{Namespace: "test"}, prometheus.NewRegistry())
	m := job.NewManager(job.Deps{
		Store:     job.NewMemoryStore(),
		Queue:     job.NewMemoryQueue(),
		Files:     files,
		Formats:   registry,
		Generator: generator.New(recs, generator.DefaultOptions(), nil),
		Records:   recs,
		Observer:  collector,
	}, job.Config{ChunkSize: 10})

	srv := NewServer(&config.ServerConfig{ShutdownTimeout: time.Second}, Deps{
		Jobs:           m,
		Formats:        registry,
		Records:        recs,
		IncludeHeader:  true,
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
	})
	return &testEnv{server: srv, manager: m, registry: registry, records: recs, metrics: collector}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestServer_StartExportAndDownload(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{
		"record_type": "orders",
		"ids":         []string{"1", "2", "3"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	got := decode[job.Job](t, rec)
	if got.Status != job.StatusQueued || got.FormatKey != format.KeyDefault {
		t.Errorf("job = %+v, want queued default export", got)
	}
	if !got.Options.IncludeHeader {
		t.Error("IncludeHeader should default from server deps")
	}

	// Not yet processed.
	if rec := env.do(t, http.MethodGet, "/api/exports/"+got.ID+"/download", nil); rec.Code != http.StatusConflict {
		t.Errorf("download before completion = %d, want 409", rec.Code)
	}

	if _, err := env.manager.Run(context.Background(), got.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/exports/"+got.ID, nil)
	view := decode[map[string]any](t, rec)
	if view["status"] != string(job.StatusCompleted) || view["progress"] != float64(1) {
		t.Errorf("job view = %v, want completed with progress 1", view)
	}

	rec = env.do(t, http.MethodGet, "/api/exports/"+got.ID+"/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, got.FileName) {
		t.Errorf("Content-Disposition = %q, want file name %q", cd, got.FileName)
	}
	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("download has %d lines, want header + 3 rows:\n%s", len(lines), rec.Body.String())
	}
	if !strings.HasPrefix(lines[0], format.FieldOrderID) {
		t.Errorf("header = %q, want it to start with %q", lines[0], format.FieldOrderID)
	}

	if n := counterValue(t, env.metrics, "test_export_rows_total"); n != 3 {
		t.Errorf("rows_total = %v, want 3", n)
	}
}

// counterValue gathers a single-series counter by name.
func counterValue(t *testing.T, c *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) == 1 {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestServer_StartExportByQuery(t *testing.T) {
	env := newTestEnv(t, 4)

	rec := env.do(t, http.MethodPost, "/api/exports", map[string]any{
		"record_type": "orders",
		"query":       map[string]any{"statuses": []string{"processing"}, "limit": 2},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if got := decode[job.Job](t, rec); len(got.IDs) != 2 {
		t.Errorf("len(IDs) = %d, want 2", len(got.IDs))
	}
}

func TestServer_StartExportErrors(t *testing.T) {
	env := newTestEnv(t, 1)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantBody string
	}{
		{"nothing to export", map[string]any{"record_type": "orders", "ids": []string{}}, http.StatusOK, "nothing_to_export"},
		{"unknown record type", map[string]any{"record_type": "products", "ids": []string{"1"}}, http.StatusBadRequest, "validation_failed"},
		{"unknown method", map[string]any{"record_type": "orders", "ids": []string{"1"}, "method": "carrier_pigeon"}, http.StatusBadRequest, "validation_failed"},
		{"unknown format", map[string]any{"record_type": "orders", "ids": []string{"1"}, "format": "nope"}, http.StatusNotFound, "format_not_found"},
		{"malformed guest id", map[string]any{"record_type": "customers", "ids": []string{"guest:"}}, http.StatusBadRequest, "bad_request"},
		{"unknown field", map[string]any{"record_type": "orders", "idz": []string{"1"}}, http.StatusBadRequest, "bad_request"},
		{"invalid json", "{", http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/exports", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestServer_ListAndDeleteExports(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.manager.StartExport(ctx, job.StartRequest{
			RecordType: export.RecordTypeOrders,
			IDs:        []export.Identifier{{ID: "1"}},
		}); err != nil {
			t.Fatal(err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/exports?record_type=orders&status=queued", nil)
	list := decode[struct {
		Jobs  []job.Job `json:"jobs"`
		Count int       `json:"count"`
	}](t, rec)
	if list.Count != 2 {
		t.Fatalf("count = %d, want 2", list.Count)
	}

	if rec := env.do(t, http.MethodGet, "/api/exports?status=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", rec.Code)
	}

	id := list.Jobs[0].ID
	if rec := env.do(t, http.MethodDelete, "/api/exports/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/exports/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/exports/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestServer_TransferExport(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	j, err := env.manager.StartExport(ctx, job.StartRequest{
		RecordType: export.RecordTypeOrders,
		IDs:        []export.Identifier{{ID: "1"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if rec := env.do(t, http.MethodPost, "/api/exports/"+j.ID+"/transfer", nil); rec.Code != http.StatusConflict {
		t.Errorf("transfer of queued job = %d, want 409", rec.Code)
	}

	if _, err := env.manager.Run(ctx, j.ID); err != nil {
		t.Fatal(err)
	}

	// A local job needs an explicit method.
	if rec := env.do(t, http.MethodPost, "/api/exports/"+j.ID+"/transfer", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("transfer without method = %d, want 400", rec.Code)
	}

	// No dispatcher is configured, so the attempt fails as a transfer error.
	rec := env.do(t, http.MethodPost, "/api/exports/"+j.ID+"/transfer", map[string]string{"method": "email"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("transfer = %d, want 502 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestServer_Formats(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/formats/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	list := decode[struct {
		Active  string       `json:"active"`
		Formats []formatView `json:"formats"`
	}](t, rec)
	if list.Active != format.KeyDefault || len(list.Formats) != len(format.Builtins(export.RecordTypeOrders)) {
		t.Fatalf("list = %+v", list)
	}
	if !list.Formats[0].Active || list.Formats[0].Kind != "builtin" {
		t.Errorf("first format = %+v, want active builtin", list.Formats[0])
	}

	rec = env.do(t, http.MethodPost, "/api/formats/orders", map[string]any{
		"name":      "Warehouse",
		"delimiter": ";",
		"mapping": []map[string]string{
			{"source": "field", "value": format.FieldOrderID},
			{"source": "static", "value": "WH-1", "name": "Warehouse"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	saved := decode[format.CustomFormat](t, rec)
	if saved.Key != "custom-warehouse" || saved.RecordType != export.RecordTypeOrders {
		t.Errorf("saved = %+v", saved)
	}

	if rec := env.do(t, http.MethodPost, "/api/formats/orders", map[string]any{
		"name":    "Broken",
		"mapping": []map[string]string{{"source": "field", "value": "no_such_field"}},
	}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid format = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodPut, "/api/formats/orders/active", map[string]string{"key": saved.Key}); rec.Code != http.StatusOK {
		t.Fatalf("set active = %d (body %s)", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPut, "/api/formats/orders/active", map[string]string{"key": "nope"}); rec.Code != http.StatusNotFound {
		t.Errorf("set unknown active = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/formats/orders/"+saved.Key, nil); rec.Code != http.StatusConflict {
		t.Errorf("delete active = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/formats/orders/"+format.KeyDefault, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("delete builtin = %d, want 422", rec.Code)
	}

	env.do(t, http.MethodPut, "/api/formats/orders/active", map[string]string{"key": format.KeyDefault})
	if rec := env.do(t, http.MethodDelete, "/api/formats/orders/"+saved.Key, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rec.Code)
	}

	if rec := env.do(t, http.MethodGet, "/api/formats/products", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown record type = %d, want 400", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodGet, "/health", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_http_requests_total{code="200",method="GET",route="/health"} 1`) {
		t.Errorf("metrics body missing /health request:\n%s", rec.Body.String())
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	env := newTestEnv(t, 0)
	env.server.config.ListenAddress = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !env.server.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	if env.server.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServer_Readiness(t *testing.T) {
	env := newTestEnv(t, 0)
	checker := health.New(time.Second)
	checker.Register("job_store", func(ctx context.Context) error {
		_, err := env.manager.ListJobs(ctx, job.Filter{Limit: 1})
		return err
	})
	checker.Register("queue", func(context.Context) error { return errors.New("connection refused") })
	srv := NewServer(&config.ServerConfig{}, Deps{
		Jobs:    env.manager,
		Formats: env.registry,
		Health:  checker,
		Build:   BuildInfo{Version: "1.2.3"},
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d, want 503", rec.Code)
	}
	var report health.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Checks["job_store"].Status != health.StatusOK || report.Checks["queue"].Status != health.StatusUnhealthy {
		t.Errorf("checks = %+v", report.Checks)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if !strings.Contains(rec.Body.String(), `"version":"1.2.3"`) {
		t.Errorf("/version body = %s", rec.Body.String())
	}
}
