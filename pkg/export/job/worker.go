package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/courier/pkg/export"
)

// WorkerConfig tunes a Worker pool.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel.
	// Default: 2
	Concurrency int

	// ErrorBackoff is the pause after a queue error.
	// Default: 1 second
	ErrorBackoff time.Duration

	// LockRetry is the delay before a job whose claim is held elsewhere is
	// enqueued again. A live holder re-enqueues the job itself; the retry
	// picks up jobs left behind by a process that died holding a lease.
	// Default: 30 seconds
	LockRetry time.Duration
}

// Worker drains a Queue, running one chunk per claimed id and re-enqueueing
// the job until it is terminal. Between chunks the job goes back to the end
// of the queue, so long exports do not starve short ones.
type Worker struct {
	manager *Manager
	queue   Queue
	cfg     WorkerConfig
	logger  *slog.Logger

	retries sync.WaitGroup
}

// NewWorker creates a worker pool.
func NewWorker(manager *Manager, queue Queue, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if cfg.LockRetry <= 0 {
		cfg.LockRetry = 30 * time.Second
	}
	return &Worker{
		manager: manager,
		queue:   queue,
		cfg:     cfg,
		logger:  slog.Default().With("component", "export.worker"),
	}
}

// Run processes jobs until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Export workers started", "concurrency", w.cfg.Concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	err := g.Wait()
	w.retries.Wait()
	w.logger.Info("Export workers stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		id, err := w.queue.Claim(ctx)
		switch {
		case ctx.Err() != nil, errors.Is(err, ErrQueueClosed):
			return nil
		case errors.Is(err, ErrQueueEmpty):
			continue
		case err != nil:
			w.logger.Error("Failed to claim from export queue", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.ErrorBackoff):
			}
			continue
		}
		w.handle(ctx, id)
	}
}

// handle runs one tick and settles the queue entry.
func (w *Worker) handle(ctx context.Context, id string) {
	settle := context.WithoutCancel(ctx)

	j, err := w.manager.Tick(ctx, id)
	switch {
	case err == nil && !j.Status.Terminal():
		if err := w.queue.Enqueue(settle, id); err != nil {
			w.logger.Error("Failed to re-enqueue export job", "job_id", id, "error", err)
		}
	case ctx.Err() != nil:
		// Shutdown mid-chunk: nothing was committed, hand the id back.
		if err := w.queue.Nack(settle, id); err != nil {
			w.logger.Error("Failed to return export job to queue", "job_id", id, "error", err)
		}
		return
	case errors.Is(err, export.ErrJobLocked):
		w.retryLater(ctx, id)
	case errors.Is(err, export.ErrJobNotFound), errors.Is(err, export.ErrJobCancelled):
	case err != nil:
		var jobErr *export.JobError
		if errors.As(err, &jobErr) && jobErr.Phase == "commit" {
			// The chunk is redone on the next tick.
			if err := w.queue.Enqueue(settle, id); err != nil {
				w.logger.Error("Failed to re-enqueue export job", "job_id", id, "error", err)
			}
		}
	}
	if err := w.queue.Ack(settle, id); err != nil {
		w.logger.Error("Failed to acknowledge export job", "job_id", id, "error", err)
	}
}

// retryLater enqueues id again after LockRetry unless ctx ends first.
func (w *Worker) retryLater(ctx context.Context, id string) {
	w.logger.Debug("Export job claimed elsewhere", "job_id", id, "retry_in", w.cfg.LockRetry)
	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		timer := time.NewTimer(w.cfg.LockRetry)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		err := w.queue.Enqueue(context.WithoutCancel(ctx), id)
		if err != nil && !errors.Is(err, ErrQueueClosed) {
			w.logger.Error("Failed to re-enqueue export job", "job_id", id, "error", err)
		}
	}()
}
