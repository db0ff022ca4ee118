package format

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/courier/pkg/export"
)

// formatFile is the on-disk layout of a YAMLStore.
type formatFile struct {
	Active  map[export.RecordType]string          `yaml:"active,omitempty"`
	Formats map[export.RecordType][]*CustomFormat `yaml:"formats,omitempty"`
}

// YAMLStore is a Store backed by a single YAML file. Reads are served from
// memory; every write rewrites the file through a temp file and rename.
// External edits are picked up by Reload, usually driven by a Watcher.
type YAMLStore struct {
	path   string
	mem    *MemoryStore
	logger *slog.Logger

	// writeMu serializes mutate-and-persist so a reload never interleaves
	// with a half-applied write.
	writeMu sync.Mutex
}

// NewYAMLStore opens the format file at path, creating its directory. A
// missing file is treated as empty.
func NewYAMLStore(path string) (*YAMLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, export.NewStorageError("yaml", "open", err)
	}
	s := &YAMLStore{
		path:   path,
		mem:    NewMemoryStore(),
		logger: slog.Default().With("component", "export.format.yaml_store"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *YAMLStore) Path() string { return s.path }

// Reload re-reads the backing file, replacing the in-memory view.
func (s *YAMLStore) Reload() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mem.replace(map[export.RecordType]map[string]*CustomFormat{}, map[export.RecordType]string{})
		return nil
	}
	if err != nil {
		return export.NewStorageError("yaml", "read", err)
	}

	var file formatFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return export.NewStorageError("yaml", "parse", fmt.Errorf("%s: %w", s.path, err))
	}

	formats := make(map[export.RecordType]map[string]*CustomFormat, len(file.Formats))
	count := 0
	for t, list := range file.Formats {
		byKey := make(map[string]*CustomFormat, len(list))
		for _, cf := range list {
			if cf == nil {
				continue
			}
			cf.RecordType = t
			if err := ValidateCustomFormat(cf); err != nil {
				s.logger.Warn("Skipping invalid custom format", "record_type", t, "key", cf.Key, "error", err)
				continue
			}
			byKey[cf.Key] = cf
			count++
		}
		formats[t] = byKey
	}
	active := file.Active
	if active == nil {
		active = map[export.RecordType]string{}
	}
	s.mem.replace(formats, active)

	s.logger.Debug("Custom formats loaded", "path", s.path, "count", count)
	return nil
}

// List implements Store.
func (s *YAMLStore) List(ctx context.Context, t export.RecordType) ([]*CustomFormat, error) {
	return s.mem.List(ctx, t)
}

// Get implements Store.
func (s *YAMLStore) Get(ctx context.Context, t export.RecordType, key string) (*CustomFormat, error) {
	return s.mem.Get(ctx, t, key)
}

// Save implements Store.
func (s *YAMLStore) Save(ctx context.Context, cf *CustomFormat) error {
	return s.mutate(func() error { return s.mem.Save(ctx, cf) })
}

// Delete implements Store.
func (s *YAMLStore) Delete(ctx context.Context, t export.RecordType, key string) error {
	return s.mutate(func() error { return s.mem.Delete(ctx, t, key) })
}

// ActiveFormat implements Store.
func (s *YAMLStore) ActiveFormat(ctx context.Context, t export.RecordType) (string, error) {
	return s.mem.ActiveFormat(ctx, t)
}

// SetActiveFormat implements Store.
func (s *YAMLStore) SetActiveFormat(ctx context.Context, t export.RecordType, key string) error {
	return s.mutate(func() error { return s.mem.SetActiveFormat(ctx, t, key) })
}

func (s *YAMLStore) mutate(apply func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := apply(); err != nil {
		return err
	}
	return s.persist()
}

func (s *YAMLStore) persist() error {
	formats, active := s.mem.snapshot()
	data, err := yaml.Marshal(formatFile{Active: active, Formats: formats})
	if err != nil {
		return export.NewStorageError("yaml", "encode", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".formats-*.yaml")
	if err != nil {
		return export.NewStorageError("yaml", "write", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return export.NewStorageError("yaml", "write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return export.NewStorageError("yaml", "write", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return export.NewStorageError("yaml", "rename", err)
	}
	return nil
}
