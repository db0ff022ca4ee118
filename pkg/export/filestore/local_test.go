package filestore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/courier/pkg/export"
)

func TestNewLocal_WritesProtectionFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	if _, err := NewLocal(dir); err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	for _, name := range []string{indexFile, htaccessFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestLocal_AppendTruncateRead(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	name := FileName(export.RecordTypeOrders, "job-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if name != "orders-export-2025-03-01-job-1.csv" {
		t.Errorf("FileName() = %q", name)
	}

	if err := l.Truncate(name, 0); err != nil {
		t.Fatalf("Truncate() on missing file error = %v", err)
	}
	if err := l.Append(name, []byte("a,b\n")); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(name, []byte("1,2\n")); err != nil {
		t.Fatal(err)
	}
	if err := l.Truncate(name, 4); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(name, []byte("3,4\n")); err != nil {
		t.Fatal(err)
	}

	size, err := l.Size(name)
	if err != nil || size != 8 {
		t.Errorf("Size() = %d, %v; want 8", size, err)
	}

	rc, err := l.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "a,b\n3,4\n" {
		t.Errorf("content = %q", data)
	}

	if err := l.Delete(name); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(name); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if size, _ := l.Size(name); size != 0 {
		t.Errorf("Size() after delete = %d", size)
	}
}

func TestLocal_RejectsEscapingNames(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "../x.csv", "a/b.csv", ".htaccess"} {
		if err := l.Append(name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Append(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}
