package format

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/courier/pkg/export"
)

// Store persists custom formats and the active format selection per record
// type. Writes are last-writer-wins. Implementations must be safe for
// concurrent use.
type Store interface {
	// List returns the custom formats of a record type ordered by key.
	List(ctx context.Context, t export.RecordType) ([]*CustomFormat, error)

	// Get returns one custom format or export.ErrFormatNotFound.
	Get(ctx context.Context, t export.RecordType, key string) (*CustomFormat, error)

	// Save creates or replaces a custom format.
	Save(ctx context.Context, cf *CustomFormat) error

	// Delete removes a custom format. Deleting a missing key returns
	// export.ErrFormatNotFound.
	Delete(ctx context.Context, t export.RecordType, key string) error

	// ActiveFormat returns the selected format key, or "" when none is set.
	ActiveFormat(ctx context.Context, t export.RecordType) (string, error)

	// SetActiveFormat selects the format used when a job names none.
	SetActiveFormat(ctx context.Context, t export.RecordType, key string) error
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	formats map[export.RecordType]map[string]*CustomFormat
	active  map[export.RecordType]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		formats: make(map[export.RecordType]map[string]*CustomFormat),
		active:  make(map[export.RecordType]string),
	}
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, t export.RecordType) ([]*CustomFormat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*CustomFormat, 0, len(s.formats[t]))
	for _, cf := range s.formats[t] {
		out = append(out, cf.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, t export.RecordType, key string) (*CustomFormat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cf, ok := s.formats[t][key]
	if !ok {
		return nil, export.ErrFormatNotFound
	}
	return cf.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, cf *CustomFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.formats[cf.RecordType] == nil {
		s.formats[cf.RecordType] = make(map[string]*CustomFormat)
	}
	s.formats[cf.RecordType][cf.Key] = cf.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, t export.RecordType, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.formats[t][key]; !ok {
		return export.ErrFormatNotFound
	}
	delete(s.formats[t], key)
	return nil
}

// ActiveFormat implements Store.
func (s *MemoryStore) ActiveFormat(_ context.Context, t export.RecordType) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[t], nil
}

// SetActiveFormat implements Store.
func (s *MemoryStore) SetActiveFormat(_ context.Context, t export.RecordType, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[t] = key
	return nil
}

// replace swaps the full contents, used by file-backed stores on reload.
func (s *MemoryStore) replace(formats map[export.RecordType]map[string]*CustomFormat, active map[export.RecordType]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats = formats
	s.active = active
}

// snapshot returns deep copies of the full contents.
func (s *MemoryStore) snapshot() (map[export.RecordType][]*CustomFormat, map[export.RecordType]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	formats := make(map[export.RecordType][]*CustomFormat, len(s.formats))
	for t, byKey := range s.formats {
		list := make([]*CustomFormat, 0, len(byKey))
		for _, cf := range byKey {
			list = append(list, cf.Clone())
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
		formats[t] = list
	}
	active := make(map[export.RecordType]string, len(s.active))
	for t, k := range s.active {
		active[t] = k
	}
	return formats, active
}
