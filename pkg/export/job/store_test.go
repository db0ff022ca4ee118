package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/courier/pkg/export"
)

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		cfg := DefaultSQLiteConfig()
		cfg.Path = filepath.Join(t.TempDir(), "jobs.db")
		s, err := NewSQLiteStore(cfg)
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

var baseTime = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func newJob(id string, created time.Time) *Job {
	return &Job{
		ID:         id,
		RecordType: export.RecordTypeOrders,
		FormatKey:  "default",
		Method:     MethodLocal,
		Invocation: InvocationManual,
		IDs:        []export.Identifier{{ID: "1"}, {OrderID: "9", Email: "g@example.com"}},
		Options:    Options{IncludeHeader: true},
		Status:     StatusQueued,
		FileName:   id + ".csv",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestStore_CreateGet(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Create(ctx, newJob("a", baseTime)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != StatusQueued || len(got.IDs) != 2 || !got.IDs[1].IsGuest() || !got.Options.IncludeHeader {
			t.Errorf("Get() = %+v", got)
		}
		if !got.CreatedAt.Equal(baseTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
		}
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, export.ErrJobNotFound) {
			t.Errorf("Get(missing) error = %v", err)
		}
	})
}

func TestStore_UpdateKeepsCancelAndTransfer(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		j := newJob("a", baseTime)
		s.Create(ctx, j)

		if err := s.RequestCancel(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateTransfer(ctx, "a", TransferFailed, "boom"); err != nil {
			t.Fatal(err)
		}

		j.Status = StatusProcessing
		j.Cursor = 1
		j.BytesWritten = 120
		if err := s.Update(ctx, j); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, _ := s.Get(ctx, "a")
		if !got.CancelRequested {
			t.Error("Update() cleared the cancellation request")
		}
		if got.TransferStatus != TransferFailed || got.TransferMessage != "boom" {
			t.Errorf("transfer = %s %q", got.TransferStatus, got.TransferMessage)
		}
		if got.Cursor != 1 || got.BytesWritten != 120 || got.Status != StatusProcessing {
			t.Errorf("progress not persisted: %+v", got)
		}

		if err := s.Update(ctx, newJob("missing", baseTime)); !errors.Is(err, export.ErrJobNotFound) {
			t.Errorf("Update(missing) error = %v", err)
		}
	})
}

func TestStore_Claim(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Create(ctx, newJob("a", baseTime))

		if _, err := s.Claim(ctx, "a", "w1", baseTime, time.Minute); err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if _, err := s.Claim(ctx, "a", "w2", baseTime.Add(30*time.Second), time.Minute); !errors.Is(err, export.ErrJobLocked) {
			t.Fatalf("second Claim() error = %v, want ErrJobLocked", err)
		}

		// Releasing someone else's claim does nothing.
		s.Release(ctx, "a", "w2")
		if _, err := s.Claim(ctx, "a", "w2", baseTime.Add(30*time.Second), time.Minute); !errors.Is(err, export.ErrJobLocked) {
			t.Fatalf("Claim() after foreign release error = %v", err)
		}

		// Expired lease.
		if _, err := s.Claim(ctx, "a", "w2", baseTime.Add(2*time.Minute), time.Minute); err != nil {
			t.Fatalf("Claim() after expiry error = %v", err)
		}
		s.Release(ctx, "a", "w2")
		if _, err := s.Claim(ctx, "a", "w3", baseTime.Add(2*time.Minute), time.Minute); err != nil {
			t.Fatalf("Claim() after release error = %v", err)
		}

		if _, err := s.Claim(ctx, "missing", "w1", baseTime, time.Minute); !errors.Is(err, export.ErrJobNotFound) {
			t.Errorf("Claim(missing) error = %v", err)
		}
	})
}

func TestStore_UpdateRequiresClaimOwner(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Create(ctx, newJob("a", baseTime))

		stale, err := s.Claim(ctx, "a", "w1", baseTime, time.Minute)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if _, err := s.Claim(ctx, "a", "w1", baseTime.Add(30*time.Second), time.Minute); err != nil {
			t.Fatalf("renewing own claim error = %v", err)
		}

		// w1's renewed lease lapses and w2 takes the job over.
		if _, err := s.Claim(ctx, "a", "w2", baseTime.Add(2*time.Minute), time.Minute); err != nil {
			t.Fatalf("Claim() after lapse error = %v", err)
		}

		stale.Cursor = 2
		if err := s.Update(ctx, stale); !errors.Is(err, export.ErrJobLocked) {
			t.Fatalf("Update() by former owner error = %v, want ErrJobLocked", err)
		}
		cur, _ := s.Get(ctx, "a")
		if cur.Cursor != 0 {
			t.Errorf("former owner's commit persisted cursor %d", cur.Cursor)
		}
		if cur.LockedBy != "w2" {
			t.Fatalf("LockedBy = %q, want w2", cur.LockedBy)
		}

		cur.Cursor = 1
		if err := s.Update(ctx, cur); err != nil {
			t.Fatalf("Update() by owner error = %v", err)
		}
		if err := s.Update(ctx, newJob("missing", baseTime)); !errors.Is(err, export.ErrJobNotFound) {
			t.Errorf("Update(missing) error = %v", err)
		}
	})
}

func TestStore_List(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, id := range []string{"a", "b", "c"} {
			j := newJob(id, baseTime.Add(time.Duration(i)*time.Hour))
			if id == "b" {
				j.Status = StatusCompleted
				j.RecordType = export.RecordTypeCustomers
			}
			s.Create(ctx, j)
		}

		all, err := s.List(ctx, Filter{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
			t.Errorf("List() order = %v", jobIDs(all))
		}

		cutoff := baseTime.Add(90 * time.Minute)
		tests := []struct {
			name   string
			filter Filter
			want   []string
		}{
			{"status", Filter{Statuses: []Status{StatusCompleted}}, []string{"b"}},
			{"record type", Filter{RecordType: export.RecordTypeOrders}, []string{"c", "a"}},
			{"created before", Filter{CreatedBefore: &cutoff}, []string{"b", "a"}},
			{"limit", Filter{Limit: 1}, []string{"c"}},
		}
		for _, tt := range tests {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if ids := jobIDs(got); !equalStrings(ids, tt.want) {
				t.Errorf("%s: List() = %v, want %v", tt.name, ids, tt.want)
			}
		}

		if err := s.Delete(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, "a"); err != nil {
			t.Errorf("second Delete() error = %v", err)
		}
	})
}

func jobIDs(jobs []*Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
