package job

import (
	"context"
	"testing"
	"time"

	"mercator-hq/courier/pkg/export"
)

func TestWorker_DrainsQueue(t *testing.T) {
	env := newTestEnv(t, 7, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ids []string
	for i := 0; i < 3; i++ {
		j, err := env.manager.StartExport(ctx, StartRequest{RecordType: export.RecordTypeOrders, IDs: orderIDs(7)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, j.ID)
	}

	w := NewWorker(env.manager, env.queue, WorkerConfig{Concurrency: 3})
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for _, id := range ids {
		for {
			j, err := env.manager.GetJob(context.Background(), id)
			if err != nil {
				t.Fatal(err)
			}
			if j.Status.Terminal() {
				if j.Status != StatusCompleted || j.RowsWritten != 7 {
					t.Errorf("job %s: status=%s rows=%d", id, j.Status, j.RowsWritten)
				}
				break
			}
			select {
			case <-deadline:
				t.Fatalf("job %s not finished, status %s", id, j.Status)
			case <-time.After(10 * time.Millisecond):
			}
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if env.queue.Len() != 0 || env.queue.InFlight() != 0 {
		t.Errorf("queue not drained: len=%d inflight=%d", env.queue.Len(), env.queue.InFlight())
	}
}

func TestManager_ResumeEnqueuesUnfinished(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2, 10, nil)
	a, _ := env.manager.StartExport(ctx, StartRequest{RecordType: export.RecordTypeOrders, IDs: orderIDs(2)})
	b, _ := env.manager.StartExport(ctx, StartRequest{RecordType: export.RecordTypeOrders, IDs: orderIDs(1)})
	if _, err := env.manager.Run(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	q := NewMemoryQueue()
	env.manager.queue = q
	n, err := env.manager.Resume(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Resume() = %d, %v; want 1", n, err)
	}
	if got, _ := q.Claim(ctx); got != a.ID {
		t.Errorf("resumed %q, want %q", got, a.ID)
	}
}

func TestWorker_RetriesJobHeldByDeadProcess(t *testing.T) {
	env := newTestEnv(t, 3, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := env.manager.StartExport(ctx, StartRequest{RecordType: export.RecordTypeOrders, IDs: orderIDs(3)})
	if err != nil {
		t.Fatal(err)
	}
	// A process died while holding the job; its lease is still live.
	if _, err := env.store.Claim(ctx, j.ID, "dead", env.clock.Now(), DefaultLeaseTTL); err != nil {
		t.Fatal(err)
	}

	w := NewWorker(env.manager, env.queue, WorkerConfig{Concurrency: 1, LockRetry: 10 * time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if got, _ := env.manager.GetJob(ctx, j.ID); got.Status != StatusQueued || got.Cursor != 0 {
		t.Fatalf("job progressed under a foreign lease: status=%s cursor=%d", got.Status, got.Cursor)
	}

	env.clock.Advance(DefaultLeaseTTL + time.Second)

	deadline := time.After(5 * time.Second)
	for {
		got, err := env.manager.GetJob(context.Background(), j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status.Terminal() {
			if got.Status != StatusCompleted || got.RowsWritten != 3 {
				t.Errorf("job = status %s rows %d", got.Status, got.RowsWritten)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed after the lease lapsed, status %s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
