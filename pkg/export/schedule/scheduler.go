package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/courier/pkg/export"
)

// DefaultCleanupInterval is the retention sweep interval.
const DefaultCleanupInterval = time.Hour

// Scheduler invokes the Cron tasks on fixed intervals.
type Scheduler struct {
	tasks   *Cron
	cleanup time.Duration
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler. A non-positive cleanup interval uses
// DefaultCleanupInterval.
func NewScheduler(tasks *Cron, cleanup time.Duration) *Scheduler {
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &Scheduler{
		tasks:   tasks,
		cleanup: cleanup,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "export.scheduler"),
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

// Start registers one entry per enabled auto export plus the cleanup sweep
// and starts the cron runner. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	for t, ae := range s.tasks.exports {
		t := t
		if ae.IntervalMinutes <= 0 {
			continue
		}
		interval := time.Duration(ae.IntervalMinutes) * time.Minute
		if _, err := s.cron.AddFunc(every(interval), func() { s.runAutoExport(ctx, t) }); err != nil {
			return fmt.Errorf("failed to schedule auto export of %s: %w", t, err)
		}
		s.logger.Info("Auto export scheduled", "record_type", t, "interval", interval)
	}

	if _, err := s.cron.AddFunc(every(s.cleanup), func() { s.runCleanup(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Export scheduler started", "cleanup_interval", s.cleanup)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runAutoExport(ctx context.Context, t export.RecordType) {
	j, err := s.tasks.AutoExport(ctx, t)
	if err != nil {
		s.logger.Error("Scheduled auto export failed", "record_type", t, "error", err)
		return
	}
	if j != nil {
		s.logger.Info("Scheduled auto export started", "record_type", t, "job_id", j.ID, "ids", len(j.IDs))
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	removed, err := s.tasks.CleanupExpiredExports(ctx)
	if err != nil {
		s.logger.Error("Scheduled export cleanup failed", "removed", removed, "error", err)
		return
	}
	s.logger.Debug("Scheduled export cleanup completed", "removed", removed)
}

// Stop stops the scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("Export scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Entries returns the number of scheduled entries.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cron.Entries())
}

// NextRun returns the earliest next run, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next == nil || e.Next.Before(*next) {
			n := e.Next
			next = &n
		}
	}
	return next
}
