package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/job"
)

// DefaultTimeout bounds one transfer attempt.
const DefaultTimeout = 30 * time.Second

// ErrNotConfigured is returned by a strategy whose settings are incomplete.
// It is raised before any connection is attempted.
var ErrNotConfigured = errors.New("transfer method not configured")

// File is the export file handed to a strategy.
type File struct {
	Path       string
	Name       string
	JobID      string
	RecordType export.RecordType
}

// Strategy delivers a file with one method.
type Strategy interface {
	// Perform makes one delivery attempt. It must honour ctx.
	Perform(ctx context.Context, f File) error

	// Target names the destination for error messages, e.g. "sftp.example.com:22".
	Target() string
}

// Config holds the settings of every method.
type Config struct {
	// Timeout bounds one attempt, connection setup included.
	// Default: 30 seconds
	Timeout time.Duration

	Email EmailConfig
	HTTP  HTTPConfig
	FTP   FTPConfig
	SFTP  SFTPConfig
}

// Dispatcher routes a job to the strategy of its method. It makes exactly
// one attempt per call and never retries.
type Dispatcher struct {
	mu         sync.RWMutex
	strategies map[job.Method]Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher with the built-in strategies.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	d := &Dispatcher{
		strategies: make(map[job.Method]Strategy),
		timeout:    cfg.Timeout,
		logger:     slog.Default().With("component", "export.transfer"),
	}
	d.Register(job.MethodEmail, NewEmailStrategy(cfg.Email))
	d.Register(job.MethodHTTPPost, NewHTTPStrategy(cfg.HTTP, cfg.Timeout))
	d.Register(job.MethodFTP, NewFTPStrategy(cfg.FTP, false, cfg.Timeout))
	d.Register(job.MethodFTPS, NewFTPStrategy(cfg.FTP, true, cfg.Timeout))
	d.Register(job.MethodSFTP, NewSFTPStrategy(cfg.SFTP, cfg.Timeout))
	return d
}

// Register sets the strategy of a method, replacing any previous one.
func (d *Dispatcher) Register(m job.Method, s Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strategies[m] = s
}

// Transfer implements job.Transferer. Every failure is returned as a
// *export.TransferError naming the method and target.
func (d *Dispatcher) Transfer(ctx context.Context, j *job.Job, path string) error {
	d.mu.RLock()
	s, ok := d.strategies[j.Method]
	d.mu.RUnlock()
	if !ok {
		return export.NewTransferError(string(j.Method), "", fmt.Errorf("unsupported transfer method %q", j.Method))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	f := File{
		Path:       path,
		Name:       filepath.Base(path),
		JobID:      j.ID,
		RecordType: j.RecordType,
	}
	start := time.Now()
	err := s.Perform(ctx, f)
	if err == nil {
		d.logger.Info("File transferred",
			"job_id", j.ID,
			"method", j.Method,
			"target", s.Target(),
			"duration", time.Since(start),
		)
		return nil
	}

	var terr *export.TransferError
	if errors.As(err, &terr) {
		return terr
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s: %w", d.timeout, err)
	}
	return export.NewTransferError(string(j.Method), s.Target(), err)
}

// runWithContext runs fn and calls abort when ctx ends first, for clients
// that take no context. It waits for fn to return.
func runWithContext(ctx context.Context, abort func(), fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	}
}

// expand fills {file_name}, {record_type}, {job_id} and {date} in s.
func expand(s string, f File) string {
	return strings.NewReplacer(
		"{file_name}", f.Name,
		"{record_type}", string(f.RecordType),
		"{job_id}", f.JobID,
		"{date}", time.Now().Format("2006-01-02"),
	).Replace(s)
}

func joinTarget(host string, port int) string {
	if host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", host, port)
}
