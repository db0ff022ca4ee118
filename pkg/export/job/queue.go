package job

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueEmpty is returned by Queue.Claim when no job became available
// within the queue's wait window.
var ErrQueueEmpty = errors.New("export queue empty")

// ErrQueueClosed is returned by a closed queue.
var ErrQueueClosed = errors.New("export queue closed")

// Queue hands job ids to workers. A claimed id stays in flight until it is
// acknowledged, or returned with Nack.
type Queue interface {
	// Enqueue schedules a job id for processing. Enqueueing an id that is
	// already pending is a no-op.
	Enqueue(ctx context.Context, jobID string) error

	// Claim waits for the next job id.
	Claim(ctx context.Context) (string, error)

	// Ack drops an in-flight id.
	Ack(ctx context.Context, jobID string) error

	// Nack returns an in-flight id to the pending list.
	Nack(ctx context.Context, jobID string) error

	// Close stops the queue. Blocked Claim calls return ErrQueueClosed.
	Close() error
}

// MemoryQueue is an in-process FIFO Queue.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []string
	queued   map[string]bool
	inflight map[string]int
	notify   chan struct{}
	done     chan struct{}
	closed   bool
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queued:   make(map[string]bool),
		inflight: make(map[string]int),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.queued[jobID] {
		return nil
	}
	q.queued[jobID] = true
	q.pending = append(q.pending, jobID)
	q.signal()
	return nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Claim implements Queue. It blocks until an id is pending, ctx is done or
// the queue is closed.
func (q *MemoryQueue) Claim(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return "", ErrQueueClosed
		}
		if len(q.pending) > 0 {
			id := q.pending[0]
			q.pending = q.pending[1:]
			delete(q.queued, id)
			q.inflight[id]++
			if len(q.pending) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.done:
			return "", ErrQueueClosed
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) settle(jobID string) {
	if n := q.inflight[jobID]; n > 1 {
		q.inflight[jobID] = n - 1
	} else {
		delete(q.inflight, jobID)
	}
}

// Ack implements Queue.
func (q *MemoryQueue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.settle(jobID)
	return nil
}

// Nack implements Queue.
func (q *MemoryQueue) Nack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	q.settle(jobID)
	q.mu.Unlock()
	return q.Enqueue(ctx, jobID)
}

// Len returns the number of pending ids.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the number of claimed, unacknowledged ids.
func (q *MemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, c := range q.inflight {
		n += c
	}
	return n
}

// Close implements Queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
