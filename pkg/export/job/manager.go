package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/filestore"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/generator"
	"mercator-hq/courier/pkg/telemetry/logging"
)

// Defaults for Config.
const (
	DefaultChunkSize = 100
	DefaultLeaseTTL  = 5 * time.Minute
	DefaultRetention = 14 * 24 * time.Hour
)

// FormatResolver resolves a format key. *format.Registry implements it.
type FormatResolver interface {
	GetFormat(ctx context.Context, t export.RecordType, key string) (*format.Definition, error)
}

// Files is the job file area. *filestore.Local implements it.
type Files interface {
	Path(name string) (string, error)
	Append(name string, data []byte) error
	Truncate(name string, size int64) error
	Delete(name string) error
}

// Transferer delivers a completed job's file.
type Transferer interface {
	Transfer(ctx context.Context, j *Job, path string) error
}

// Observer receives job metrics. The metrics collector implements it.
type Observer interface {
	JobStarted(recordType string)
	JobFinished(recordType, status string)
	ChunkWritten(recordType string, rows, skipped int, d time.Duration)
	TransferFinished(method, status string)
}

type nopObserver struct{}

func (nopObserver) JobStarted(string) {}
func (nopObserver) JobFinished(string, string) {}
func (nopObserver) ChunkWritten(string, int, int, time.Duration) {}
func (nopObserver) TransferFinished(string, string) {}

// Config tunes the Manager.
type Config struct {
	// ChunkSize is the number of identifiers processed per tick.
	ChunkSize int

	// LeaseTTL bounds how long a tick may hold a job's claim.
	LeaseTTL time.Duration

	// Retention is the age after which RemoveExpiredExports deletes a job.
	Retention time.Duration

	// Owner prefixes claim owners, typically the host name.
	Owner string
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Owner == "" {
		c.Owner = "courier"
	}
	return c
}

// StartRequest describes a new export.
type StartRequest struct {
	RecordType export.RecordType   `json:"record_type" validate:"required,oneof=orders customers"`
	IDs        []export.Identifier `json:"ids"`
	FormatKey  string              `json:"format_key,omitempty"`
	Method     Method              `json:"method,omitempty" validate:"omitempty,oneof=local email http_post ftp ftps sftp"`
	Invocation Invocation          `json:"invocation,omitempty" validate:"omitempty,oneof=manual auto"`
	Options    Options             `json:"options"`
}

// Manager owns the job lifecycle: creation, chunked processing, cancellation,
// delivery and the retention sweep.
type Manager struct {
	store      Store
	queue      Queue
	files      Files
	formats    FormatResolver
	gen        *generator.Generator
	records    export.RecordStore
	transferer Transferer
	observer   Observer
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// Deps are the collaborators of a Manager. Transferer and Observer are optional.
type Deps struct {
	Store      Store
	Queue      Queue
	Files      Files
	Formats    FormatResolver
	Generator  *generator.Generator
	Records    export.RecordStore
	Transferer Transferer
	Observer   Observer
}

// NewManager creates a Manager.
func NewManager(deps Deps, cfg Config) *Manager {
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Manager{
		store:      deps.Store,
		queue:      deps.Queue,
		files:      deps.Files,
		formats:    deps.Formats,
		gen:        deps.Generator,
		records:    deps.Records,
		transferer: deps.Transferer,
		observer:   observer,
		cfg:        cfg.withDefaults(),
		logger:     slog.Default().With("component", "export.job"),
		now:        time.Now,
	}
}

// Store returns the job store.
func (m *Manager) Store() Store { return m.store }

// StartExport validates the request, persists a queued job and enqueues it.
// It returns export.ErrNothingToExport without creating a job when no
// identifiers are given, and a *export.FormatError when the format cannot be
// resolved.
func (m *Manager) StartExport(ctx context.Context, req StartRequest) (*Job, error) {
	if len(req.IDs) == 0 {
		return nil, export.ErrNothingToExport
	}
	if !req.RecordType.Valid() {
		return nil, fmt.Errorf("unknown record type %q", req.RecordType)
	}
	if req.Method == "" {
		req.Method = MethodLocal
	}
	if req.Invocation == "" {
		req.Invocation = InvocationManual
	}
	if !req.Invocation.Valid() {
		return nil, fmt.Errorf("unknown invocation %q", req.Invocation)
	}

	def, err := m.formats.GetFormat(ctx, req.RecordType, req.FormatKey)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	id := uuid.NewString()
	j := &Job{
		ID:         id,
		RecordType: req.RecordType,
		FormatKey:  def.Key,
		Method:     req.Method,
		Invocation: req.Invocation,
		IDs:        append([]export.Identifier(nil), req.IDs...),
		Options:    req.Options,
		Status:     StatusQueued,
		FileName:   filestore.FileName(req.RecordType, id, now),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.Create(ctx, j); err != nil {
		return nil, err
	}
	if m.queue != nil {
		if err := m.queue.Enqueue(ctx, j.ID); err != nil {
			return nil, fmt.Errorf("failed to enqueue job %s: %w", j.ID, err)
		}
	}

	m.observer.JobStarted(string(j.RecordType))
	m.logger.Info("Export job created",
		"job_id", j.ID,
		"record_type", j.RecordType,
		"format", j.FormatKey,
		"ids", len(j.IDs),
		"method", j.Method,
		"invocation", j.Invocation,
	)
	return j, nil
}

// GetJob returns a job or export.ErrJobNotFound.
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	return m.store.Get(ctx, id)
}

// ListJobs lists jobs, newest first.
func (m *Manager) ListJobs(ctx context.Context, f Filter) ([]*Job, error) {
	return m.store.List(ctx, f)
}

// FilePath returns the location of a job's output file.
func (m *Manager) FilePath(j *Job) (string, error) {
	return m.files.Path(j.FileName)
}

// Tick processes the next chunk of a job. It returns export.ErrJobLocked
// when another worker holds the job, and export.ErrJobCancelled after
// purging a job whose cancellation was requested. A job in a terminal state
// is returned unchanged.
func (m *Manager) Tick(ctx context.Context, id string) (*Job, error) {
	owner := m.cfg.Owner + ":" + uuid.NewString()
	j, err := m.store.Claim(ctx, id, owner, m.now(), m.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}
	release := func() {
		if err := m.store.Release(context.WithoutCancel(ctx), id, owner); err != nil {
			m.logger.Warn("Failed to release job claim", "job_id", id, "error", err)
		}
	}

	if j.Status.Terminal() {
		release()
		return j, nil
	}

	ctx = logging.WithJobID(ctx, j.ID)
	ctx = logging.WithRecordType(ctx, string(j.RecordType))

	if j.CancelRequested {
		err := m.purge(ctx, j)
		release()
		if err != nil {
			return nil, err
		}
		return nil, export.ErrJobCancelled
	}

	j, err = m.processChunk(ctx, j)
	release()
	if err != nil {
		return j, err
	}

	if j.Status == StatusCompleted && j.Method.Transfers() && m.transferer != nil {
		if terr := m.transfer(ctx, j, j.Method); terr != nil {
			logging.FromContext(ctx).Warn("Automatic transfer failed", "method", j.Method, "error", terr)
		}
		return m.store.Get(ctx, j.ID)
	}
	return j, nil
}

func (m *Manager) processChunk(ctx context.Context, j *Job) (*Job, error) {
	log := logging.FromContext(ctx)

	def, err := m.formats.GetFormat(ctx, j.RecordType, j.FormatKey)
	if err != nil {
		return m.fail(ctx, j, "resolve", err)
	}

	if j.Status == StatusQueued {
		j.Status = StatusProcessing
		log.Info("Export job processing", "format", j.FormatKey, "ids", len(j.IDs))
	}

	// Drop bytes a previous tick wrote but never committed.
	if err := m.files.Truncate(j.FileName, j.BytesWritten); err != nil {
		return m.fail(ctx, j, "write", err)
	}

	start := m.now()
	end := j.Cursor + m.cfg.ChunkSize
	if end > len(j.IDs) {
		end = len(j.IDs)
	}

	var buf bytes.Buffer
	first := j.Cursor == 0
	header := first && j.Options.IncludeHeader
	if first && j.Options.AddBOM {
		buf.Write(generator.BOM)
	}

	res, err := m.gen.Generate(ctx, def, j.IDs[j.Cursor:end], header, &buf)
	if err != nil {
		if ctx.Err() != nil {
			return j, ctx.Err()
		}
		return m.fail(ctx, j, "generate", err)
	}

	// Renew the lease so a slow chunk is not written after another worker
	// took the job over.
	if _, err := m.store.Claim(ctx, j.ID, j.LockedBy, m.now(), m.cfg.LeaseTTL); err != nil {
		return j, export.NewJobError(j.ID, "commit", err)
	}
	if err := m.files.Append(j.FileName, buf.Bytes()); err != nil {
		return m.fail(ctx, j, "write", err)
	}

	j.Cursor = end
	j.BytesWritten += int64(buf.Len())
	j.RowsWritten += res.Rows
	j.Skipped += res.Skipped
	j.UpdatedAt = m.now().UTC()
	if err := m.store.Update(ctx, j); err != nil {
		return j, export.NewJobError(j.ID, "commit", err)
	}
	m.observer.ChunkWritten(string(j.RecordType), res.Rows, res.Skipped, m.now().Sub(start))
	log.Debug("Export chunk written", "cursor", j.Cursor, "rows", res.Rows, "skipped", res.Skipped)

	if !j.Done() {
		return j, nil
	}
	return m.complete(ctx, j)
}

func (m *Manager) complete(ctx context.Context, j *Job) (*Job, error) {
	log := logging.FromContext(ctx)

	cur, err := m.store.Get(ctx, j.ID)
	if err != nil {
		return j, err
	}
	if cur.CancelRequested {
		if err := m.purge(ctx, j); err != nil {
			return nil, err
		}
		return nil, export.ErrJobCancelled
	}

	if j.Options.MarkExported && m.records != nil {
		if err := m.records.MarkExported(ctx, j.RecordType, j.IDs); err != nil {
			log.Warn("Failed to flag exported records", "error", err)
		}
	}

	now := m.now().UTC()
	j.Status = StatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	if err := m.store.Update(ctx, j); err != nil {
		return j, export.NewJobError(j.ID, "finalize", err)
	}
	if j.Method.Transfers() {
		if err := m.store.UpdateTransfer(ctx, j.ID, TransferQueued, ""); err != nil {
			log.Warn("Failed to queue transfer", "error", err)
		}
		j.TransferStatus = TransferQueued
	}

	m.observer.JobFinished(string(j.RecordType), string(StatusCompleted))
	log.Info("Export job completed", "rows", j.RowsWritten, "skipped", j.Skipped, "bytes", j.BytesWritten)
	return j, nil
}

// fail marks the job failed and returns the cause wrapped in a JobError.
func (m *Manager) fail(ctx context.Context, j *Job, phase string, cause error) (*Job, error) {
	jobErr := export.NewJobError(j.ID, phase, cause)
	logging.FromContext(ctx).Error("Export job failed", "phase", phase, "error", cause)

	now := m.now().UTC()
	j.Status = StatusFailed
	j.Error = cause.Error()
	j.UpdatedAt = now
	j.CompletedAt = &now
	if err := m.store.Update(context.WithoutCancel(ctx), j); err != nil {
		return j, errors.Join(jobErr, err)
	}
	m.observer.JobFinished(string(j.RecordType), string(StatusFailed))
	return j, jobErr
}

// Run ticks a job until it is terminal. It is the synchronous path used by
// one-shot exports.
func (m *Manager) Run(ctx context.Context, id string) (*Job, error) {
	for {
		j, err := m.Tick(ctx, id)
		if err != nil {
			return j, err
		}
		if j.Status.Terminal() {
			return j, nil
		}
	}
}

// DeleteJob removes a job. A job that is still queued or processing is
// flagged for cancellation first; if no worker holds it, it is purged at
// once, otherwise the worker purges it before its next chunk.
func (m *Manager) DeleteJob(ctx context.Context, id string) error {
	j, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return m.purge(ctx, j)
	}

	if err := m.store.RequestCancel(ctx, id); err != nil {
		return err
	}
	owner := m.cfg.Owner + ":" + uuid.NewString()
	claimed, err := m.store.Claim(ctx, id, owner, m.now(), m.cfg.LeaseTTL)
	if errors.Is(err, export.ErrJobLocked) {
		m.logger.Info("Export job cancellation requested", "job_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	defer m.store.Release(context.WithoutCancel(ctx), id, owner)
	return m.purge(ctx, claimed)
}

// purge removes a job's file and record.
func (m *Manager) purge(ctx context.Context, j *Job) error {
	if err := m.files.Delete(j.FileName); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, j.ID); err != nil {
		return err
	}
	if !j.Status.Terminal() {
		m.observer.JobFinished(string(j.RecordType), "cancelled")
	}
	m.logger.Info("Export job removed", "job_id", j.ID, "status", j.Status)
	return nil
}

// RemoveExpiredExports deletes every job created more than the retention
// window ago, together with its file. It returns the number of jobs removed
// or flagged for cancellation.
func (m *Manager) RemoveExpiredExports(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.cfg.Retention)
	expired, err := m.store.List(ctx, Filter{CreatedBefore: &cutoff})
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, j := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := m.DeleteJob(ctx, j.ID); err != nil && !errors.Is(err, export.ErrJobNotFound) {
			errs = append(errs, fmt.Errorf("job %s: %w", j.ID, err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("Expired exports removed", "count", removed, "cutoff", cutoff)
	}
	return removed, errors.Join(errs...)
}

// Resume re-enqueues every job that is not terminal, for example after a
// restart. It returns the number of jobs enqueued.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	if m.queue == nil {
		return 0, nil
	}
	jobs, err := m.store.List(ctx, Filter{Statuses: []Status{StatusQueued, StatusProcessing}})
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		if err := m.queue.Enqueue(ctx, j.ID); err != nil {
			return 0, err
		}
	}
	return len(jobs), nil
}

// Transfer delivers a completed job's file with method, or with the job's
// own method when method is empty. It makes exactly one attempt; failure is
// recorded on the job's transfer status and returned.
func (m *Manager) Transfer(ctx context.Context, id string, method Method) (*Job, error) {
	j, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusCompleted {
		return j, fmt.Errorf("job %s is %s, only completed jobs can be transferred", j.ID, j.Status)
	}
	if method == "" {
		method = j.Method
	}
	if !method.Transfers() {
		return j, fmt.Errorf("method %q does not transfer files", method)
	}
	if m.transferer == nil {
		return j, export.NewTransferError(string(method), "", errors.New("no transfer dispatcher configured"))
	}
	terr := m.transfer(logging.WithJobID(ctx, j.ID), j, method)
	j, err = m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return j, terr
}

func (m *Manager) transfer(ctx context.Context, j *Job, method Method) error {
	log := logging.FromContext(ctx)
	path, err := m.files.Path(j.FileName)
	if err != nil {
		return err
	}
	if err := m.store.UpdateTransfer(ctx, j.ID, TransferProcessing, ""); err != nil {
		return err
	}

	attempt := j.Clone()
	attempt.Method = method
	terr := m.transferer.Transfer(ctx, attempt, path)

	status, message := TransferCompleted, ""
	if terr != nil {
		status = TransferFailed
		message = terr.Error()
		log.Error("Transfer failed", "method", method, "error", terr)
	} else {
		log.Info("Transfer completed", "method", method)
	}
	m.observer.TransferFinished(string(method), string(status))
	if err := m.store.UpdateTransfer(context.WithoutCancel(ctx), j.ID, status, message); err != nil {
		return errors.Join(terr, err)
	}
	return terr
}
