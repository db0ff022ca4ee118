package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/courier/pkg/export"
)

// MemoryStore implements Store with an in-memory map.
// It is intended for tests and single-process runs.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j.Clone()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, export.ErrJobNotFound
	}
	return j.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.match(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[j.ID]
	if !ok {
		return export.ErrJobNotFound
	}
	if j.LockedBy != "" && cur.LockedBy != j.LockedBy {
		return export.ErrJobLocked
	}
	next := j.Clone()
	next.CancelRequested = cur.CancelRequested || j.CancelRequested
	next.LockedBy = cur.LockedBy
	next.LockedUntil = cur.LockedUntil
	next.TransferStatus = cur.TransferStatus
	next.TransferMessage = cur.TransferMessage
	s.jobs[j.ID] = next
	return nil
}

// UpdateTransfer implements Store.
func (s *MemoryStore) UpdateTransfer(_ context.Context, id string, status TransferStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return export.ErrJobNotFound
	}
	j.TransferStatus = status
	j.TransferMessage = message
	return nil
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, id, owner string, now time.Time, ttl time.Duration) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, export.ErrJobNotFound
	}
	if j.Locked(now) && j.LockedBy != owner {
		return nil, export.ErrJobLocked
	}
	j.LockedBy = owner
	j.LockedUntil = now.Add(ttl)
	return j.Clone(), nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.LockedBy == owner {
		j.LockedBy = ""
		j.LockedUntil = time.Time{}
	}
	return nil
}

// RequestCancel implements Store.
func (s *MemoryStore) RequestCancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return export.ErrJobNotFound
	}
	j.CancelRequested = true
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
