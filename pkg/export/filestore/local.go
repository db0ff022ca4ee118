package filestore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/courier/pkg/export"
)

// Protection files written into the export directory so a web server that
// happens to serve it refuses directory listings.
const (
	indexFile    = "index.html"
	htaccessFile = ".htaccess"
	htaccessBody = "Options -Indexes\n<IfModule mod_authz_core.c>\n  Require all denied\n</IfModule>\n"
)

// ErrInvalidName is returned for file names that would escape the directory.
var ErrInvalidName = errors.New("invalid export file name")

// Local is a job-scoped file area on the local disk. Each job owns exactly
// one file, identified by a flat name inside the directory.
type Local struct {
	dir    string
	logger *slog.Logger
}

// NewLocal creates dir if needed and installs the index protection files.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, export.NewStorageError("file", "mkdir", err)
	}
	l := &Local{
		dir:    dir,
		logger: slog.Default().With("component", "export.filestore"),
	}
	if err := l.protect(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Local) protect() error {
	files := map[string]string{
		indexFile:    "",
		htaccessFile: htaccessBody,
	}
	for name, body := range files {
		path := filepath.Join(l.dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
			return export.NewStorageError("file", "protect", err)
		}
	}
	return nil
}

// Dir returns the directory of the file area.
func (l *Local) Dir() string { return l.dir }

// FileName returns the file name for a job's output.
func FileName(t export.RecordType, jobID string, created time.Time) string {
	return fmt.Sprintf("%s-export-%s-%s.csv", t, created.UTC().Format("2006-01-02"), jobID)
}

// Path returns the absolute location of name.
func (l *Local) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(l.dir, name), nil
}

// Append writes data at the end of name, creating it if needed.
func (l *Local) Append(name string, data []byte) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return export.NewStorageError("file", "open", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return export.NewStorageError("file", "append", err)
	}
	if err := f.Close(); err != nil {
		return export.NewStorageError("file", "close", err)
	}
	return nil
}

// Truncate cuts name to size bytes. A missing file is created empty when
// size is zero.
func (l *Local) Truncate(name string, size int64) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	err = os.Truncate(path, size)
	if errors.Is(err, os.ErrNotExist) && size == 0 {
		return nil
	}
	if err != nil {
		return export.NewStorageError("file", "truncate", err)
	}
	return nil
}

// Size returns the size of name, or zero when it does not exist.
func (l *Local) Size(name string) (int64, error) {
	path, err := l.Path(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, export.NewStorageError("file", "stat", err)
	}
	return info.Size(), nil
}

// Open returns a reader for name. The caller closes it.
func (l *Local) Open(name string) (io.ReadCloser, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, export.NewStorageError("file", "open", err)
	}
	return f, nil
}

// Delete removes name. Deleting a missing file is not an error.
func (l *Local) Delete(name string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return export.NewStorageError("file", "delete", err)
	}
	l.logger.Debug("export file deleted", "file", name)
	return nil
}
