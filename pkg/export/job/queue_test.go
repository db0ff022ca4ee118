package job

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryQueue_FIFOAndDedup(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	q.Enqueue(ctx, "a")
	q.Enqueue(ctx, "b")
	q.Enqueue(ctx, "a")
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	for _, want := range []string{"a", "b"} {
		got, err := q.Claim(ctx)
		if err != nil || got != want {
			t.Fatalf("Claim() = %q, %v; want %q", got, err, want)
		}
	}
	if q.InFlight() != 2 {
		t.Errorf("InFlight() = %d, want 2", q.InFlight())
	}
	q.Ack(ctx, "a")
	q.Nack(ctx, "b")
	if q.InFlight() != 0 || q.Len() != 1 {
		t.Errorf("after ack/nack: inflight=%d len=%d", q.InFlight(), q.Len())
	}
}

func TestMemoryQueue_ClaimBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	got := make(chan string, 1)
	go func() {
		id, _ := q.Claim(context.Background())
		got <- id
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(context.Background(), "late")
	select {
	case id := <-got:
		if id != "late" {
			t.Errorf("Claim() = %q", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Claim() did not wake up")
	}
}

func TestMemoryQueue_ContextAndClose(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Claim(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Claim() error = %v, want deadline exceeded", err)
	}

	q.Close()
	if _, err := q.Claim(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Claim() on closed queue error = %v", err)
	}
	if err := q.Enqueue(context.Background(), "x"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() on closed queue error = %v", err)
	}
}

// TestRedisQueue runs against a live server when COURIER_TEST_REDIS_ADDR is set.
func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("COURIER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COURIER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	q, err := NewRedisQueue(ctx, RedisQueueConfig{
		Addr:   addr,
		Prefix: "courier-test:" + uuid.NewString(),
		Wait:   100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRedisQueue() error = %v", err)
	}
	defer q.Close()

	if _, err := q.Claim(ctx); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Claim() on empty queue error = %v", err)
	}
	q.Enqueue(ctx, "a")
	q.Enqueue(ctx, "a")
	q.Enqueue(ctx, "b")

	first, err := q.Claim(ctx)
	if err != nil || first != "a" {
		t.Fatalf("Claim() = %q, %v", first, err)
	}
	if err := q.Nack(ctx, first); err != nil {
		t.Fatal(err)
	}
	second, _ := q.Claim(ctx)
	if second != "b" {
		t.Errorf("Claim() = %q, want b", second)
	}

	n, err := q.Recover(ctx)
	if err != nil || n != 1 {
		t.Errorf("Recover() = %d, %v; want 1", n, err)
	}
}
