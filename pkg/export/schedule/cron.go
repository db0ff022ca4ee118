package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/job"
)

// JobManager is the part of job.Manager the scheduled tasks use.
type JobManager interface {
	StartExport(ctx context.Context, req job.StartRequest) (*job.Job, error)
	ListJobs(ctx context.Context, f job.Filter) ([]*job.Job, error)
	RemoveExpiredExports(ctx context.Context) (int, error)
}

// AutoExport configures the recurring export of one record type.
type AutoExport struct {
	RecordType export.RecordType
	FormatKey  string
	Method     job.Method

	// IntervalMinutes between runs. Zero disables the auto export.
	IntervalMinutes int

	// Statuses limits orders to these statuses. Empty means any.
	Statuses []string

	IncludeHeader bool
	AddBOM        bool
}

// Cron holds the tasks a recurring trigger invokes.
type Cron struct {
	manager JobManager
	records export.RecordStore
	exports map[export.RecordType]AutoExport
	logger  *slog.Logger
}

// NewCron creates the scheduled tasks.
func NewCron(manager JobManager, records export.RecordStore, exports []AutoExport) *Cron {
	byType := make(map[export.RecordType]AutoExport, len(exports))
	for _, ae := range exports {
		byType[ae.RecordType] = ae
	}
	return &Cron{
		manager: manager,
		records: records,
		exports: byType,
		logger:  slog.Default().With("component", "export.schedule"),
	}
}

// AutoExport starts an export of every record of the type not exported
// before. It returns (nil, nil) when there is nothing new, or when an
// earlier automatic export of the type is still running.
func (c *Cron) AutoExport(ctx context.Context, t export.RecordType) (*job.Job, error) {
	ae, ok := c.exports[t]
	if !ok {
		return nil, fmt.Errorf("no auto export configured for %s", t)
	}

	running, err := c.manager.ListJobs(ctx, job.Filter{
		RecordType: t,
		Statuses:   []job.Status{job.StatusQueued, job.StatusProcessing},
	})
	if err != nil {
		return nil, err
	}
	for _, j := range running {
		if j.Invocation == job.InvocationAuto {
			c.logger.Info("Previous auto export still running", "record_type", t, "job_id", j.ID)
			return nil, nil
		}
	}

	ids, err := c.records.QueryIDs(ctx, t, export.QueryFilter{Statuses: ae.Statuses, OnlyNew: true})
	if err != nil {
		return nil, err
	}
	j, err := c.manager.StartExport(ctx, job.StartRequest{
		RecordType: t,
		IDs:        ids,
		FormatKey:  ae.FormatKey,
		Method:     ae.Method,
		Invocation: job.InvocationAuto,
		Options: job.Options{
			IncludeHeader: ae.IncludeHeader,
			AddBOM:        ae.AddBOM,
			MarkExported:  true,
		},
	})
	if errors.Is(err, export.ErrNothingToExport) {
		c.logger.Debug("Auto export found nothing new", "record_type", t)
		return nil, nil
	}
	return j, err
}

// ExportRecord starts an export of a single record after a domain event,
// such as an order being paid. It uses the auto export settings of the
// record type when present.
func (c *Cron) ExportRecord(ctx context.Context, t export.RecordType, id export.Identifier) (*job.Job, error) {
	ae := c.exports[t]
	return c.manager.StartExport(ctx, job.StartRequest{
		RecordType: t,
		IDs:        []export.Identifier{id},
		FormatKey:  ae.FormatKey,
		Method:     ae.Method,
		Invocation: job.InvocationAuto,
		Options: job.Options{
			IncludeHeader: ae.IncludeHeader,
			AddBOM:        ae.AddBOM,
			MarkExported:  true,
		},
	})
}

// CleanupExpiredExports runs the retention sweep.
func (c *Cron) CleanupExpiredExports(ctx context.Context) (int, error) {
	return c.manager.RemoveExpiredExports(ctx)
}
