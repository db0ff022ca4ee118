package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/compat"
	"mercator-hq/courier/pkg/export/filestore"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/generator"
	"mercator-hq/courier/pkg/export/job"
	"mercator-hq/courier/pkg/export/records"
	"mercator-hq/courier/pkg/export/schedule"
	"mercator-hq/courier/pkg/export/transfer"
	"mercator-hq/courier/pkg/server"
	"mercator-hq/courier/pkg/telemetry/health"
	"mercator-hq/courier/pkg/telemetry/metrics"
)

// RecordBackend is a record store that can also be loaded, as used by
// "records import".
type RecordBackend interface {
	export.RecordStore
	records.Writer
}

// App holds every component built from a configuration. Commands build one
// App and use the parts they need.
type App struct {
	Config *config.Config

	Records     RecordBackend
	JobStore    job.Store
	Queue       job.Queue
	Files       *filestore.Local
	FormatStore format.Store
	Formats     *format.Registry
	Generator   *generator.Generator
	Dispatcher  *transfer.Dispatcher
	Metrics     *metrics.Collector
	Manager     *job.Manager

	// Watcher is set when formats are file-backed and watching is enabled.
	Watcher *format.Watcher

	// Health holds the readiness checks of the opened backends.
	Health *health.Checker
	// Build is served by the /version endpoint.
	Build server.BuildInfo

	closers []func() error
	logger  *slog.Logger
}

// NewApp wires the export engine from cfg. Close releases what it opened.
func NewApp(ctx context.Context, cfg *config.Config) (app *App, err error) {
	app = &App{
		Config: cfg,
		logger: slog.Default().With("component", "app"),
	}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if err := app.openRecords(); err != nil {
		return nil, err
	}
	if err := app.openJobStore(); err != nil {
		return nil, err
	}
	if err := app.openQueue(ctx); err != nil {
		return nil, err
	}
	if err := app.openFormats(); err != nil {
		return nil, err
	}

	app.Files, err = filestore.NewLocal(cfg.Files.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open export directory: %w", err)
	}

	opts, err := GeneratorOptions(&cfg.Export)
	if err != nil {
		return nil, NewConfigError("export.timezone", err.Error())
	}
	transforms := compat.NewDefaultRegistry(compat.LegacyOptions{
		ImportItemColumns: cfg.Export.LegacyImportItemColumns,
		Values:            opts,
	})
	app.Generator = generator.New(app.Records, opts, transforms)
	app.Dispatcher = transfer.NewDispatcher(TransferConfig(&cfg.Transfer))
	app.Metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	owner, _ := os.Hostname()
	app.Manager = job.NewManager(job.Deps{
		Store:      app.JobStore,
		Queue:      app.Queue,
		Files:      app.Files,
		Formats:    app.Formats,
		Generator:  app.Generator,
		Records:    app.Records,
		Transferer: app.Dispatcher,
		Observer:   app.Metrics,
	}, job.Config{
		ChunkSize: cfg.Export.ChunkSize,
		LeaseTTL:  cfg.Export.LeaseTTL,
		Retention: time.Duration(cfg.Files.RetentionDays) * 24 * time.Hour,
		Owner:     owner,
	})
	app.registerChecks()
	return app, nil
}

// registerChecks adds a readiness check per backend.
func (a *App) registerChecks() {
	a.Health = health.New(2 * time.Second)
	a.Health.Register("job_store", func(ctx context.Context) error {
		_, err := a.JobStore.List(ctx, job.Filter{Limit: 1})
		return err
	})
	a.Health.Register("record_store", func(ctx context.Context) error {
		_, err := a.Records.QueryIDs(ctx, export.RecordTypeOrders, export.QueryFilter{Limit: 1})
		return err
	})
	a.Health.Register("export_dir", func(context.Context) error {
		fi, err := os.Stat(a.Files.Dir())
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", a.Files.Dir())
		}
		return nil
	})
	if p, ok := a.Queue.(interface{ Ping(context.Context) error }); ok {
		a.Health.Register("queue", p.Ping)
	}
}

func (a *App) openRecords() error {
	switch a.Config.Records.Backend {
	case "memory":
		a.Records = records.NewMemoryStore()
	case "sqlite":
		s, err := records.NewSQLiteStoreWithConfig(records.SQLiteStoreConfig{
			Path:        a.Config.Records.Path,
			BusyTimeout: a.Config.Records.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		a.Records = s
		a.closers = append(a.closers, s.Close)
	default:
		return NewConfigError("records.backend", fmt.Sprintf("unsupported backend %q", a.Config.Records.Backend))
	}
	return nil
}

func (a *App) openJobStore() error {
	switch a.Config.Storage.Backend {
	case "memory":
		a.JobStore = job.NewMemoryStore()
	case "sqlite":
		sc := a.Config.Storage.SQLite
		s, err := job.NewSQLiteStore(&job.SQLiteConfig{
			Path:         sc.Path,
			MaxOpenConns: sc.MaxOpenConns,
			WALMode:      config.Bool(sc.WALMode, config.DefaultSQLiteWALMode),
			BusyTimeout:  sc.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to open job store: %w", err)
		}
		a.JobStore = s
	default:
		return NewConfigError("storage.backend", fmt.Sprintf("unsupported backend %q", a.Config.Storage.Backend))
	}
	a.closers = append(a.closers, a.JobStore.Close)
	return nil
}

func (a *App) openQueue(ctx context.Context) error {
	switch a.Config.Queue.Backend {
	case "memory":
		a.Queue = job.NewMemoryQueue()
	case "redis":
		rc := a.Config.Queue.Redis
		q, err := job.NewRedisQueue(ctx, job.RedisQueueConfig{
			Addr:        rc.Addr,
			Username:    rc.Username,
			Password:    rc.Password,
			DB:          rc.DB,
			DialTimeout: rc.DialTimeout,
			Prefix:      rc.Prefix,
		})
		if err != nil {
			return err
		}
		a.Queue = q
	default:
		return NewConfigError("queue.backend", fmt.Sprintf("unsupported backend %q", a.Config.Queue.Backend))
	}
	a.closers = append(a.closers, a.Queue.Close)
	return nil
}

func (a *App) openFormats() error {
	fc := a.Config.Formats
	switch fc.Backend {
	case "memory":
		a.FormatStore = format.NewMemoryStore()
	case "yaml":
		s, err := format.NewYAMLStore(fc.Path)
		if err != nil {
			return fmt.Errorf("failed to open format store: %w", err)
		}
		a.FormatStore = s
		if fc.Watch {
			w, err := format.NewWatcher(s, fc.WatchDebounce)
			if err != nil {
				return err
			}
			a.Watcher = w
			a.closers = append(a.closers, w.Stop)
		}
	default:
		return NewConfigError("formats.backend", fmt.Sprintf("unsupported backend %q", fc.Backend))
	}
	a.Formats = format.NewRegistry(a.FormatStore, a.Records)
	return nil
}

// Worker returns a worker pool draining the app's queue.
func (a *App) Worker() *job.Worker {
	return job.NewWorker(a.Manager, a.Queue, job.WorkerConfig{
		Concurrency: a.Config.Export.Workers,
		LockRetry:   a.Config.Export.LeaseTTL,
	})
}

// Scheduler returns the cron scheduler for the configured auto exports.
func (a *App) Scheduler() *schedule.Scheduler {
	tasks := schedule.NewCron(a.Manager, a.Records, AutoExports(a.Config))
	return schedule.NewScheduler(tasks, a.Config.Schedule.CleanupInterval)
}

// Server returns the HTTP API server.
func (a *App) Server() *server.Server {
	deps := server.Deps{
		Jobs:          a.Manager,
		Formats:       a.Formats,
		Records:       a.Records,
		IncludeHeader: config.Bool(a.Config.Export.IncludeHeader, config.DefaultExportIncludeHeader),
		AddBOM:        a.Config.Export.AddBOM,
		Health:        a.Health,
		Build:         a.Build,
	}
	if config.Bool(a.Config.Telemetry.Metrics.Enabled, config.DefaultMetricsEnabled) {
		deps.Metrics = a.Metrics
		deps.MetricsHandler = a.Metrics.Handler()
		deps.MetricsPath = a.Config.Telemetry.Metrics.Path
	}
	return server.NewServer(&a.Config.Server, deps)
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// GeneratorOptions builds the generator settings from export configuration.
func GeneratorOptions(cfg *config.ExportConfig) (generator.Options, error) {
	opts := generator.DefaultOptions()
	if cfg.PriceDecimals != nil {
		opts.PriceDecimals = *cfg.PriceDecimals
	}
	if cfg.DateFormat != "" {
		opts.DateFormat = cfg.DateFormat
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return opts, fmt.Errorf("unknown timezone %q: %w", cfg.Timezone, err)
		}
		opts.Location = loc
	}
	return opts, nil
}

// TransferConfig maps transfer configuration onto the dispatcher settings.
func TransferConfig(cfg *config.TransferConfig) transfer.Config {
	return transfer.Config{
		Timeout: cfg.Timeout,
		Email: transfer.EmailConfig{
			Provider: cfg.Email.Provider,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Subject:  cfg.Email.Subject,
			Body:     cfg.Email.Body,
			SMTP: transfer.SMTPConfig{
				Host:        cfg.Email.SMTP.Host,
				Port:        cfg.Email.SMTP.Port,
				Username:    cfg.Email.SMTP.Username,
				Password:    cfg.Email.SMTP.Password,
				ImplicitTLS: cfg.Email.SMTP.ImplicitTLS,
			},
			Mailgun: transfer.MailgunConfig{
				Domain: cfg.Email.Mailgun.Domain,
				APIKey: cfg.Email.Mailgun.APIKey,
				EU:     cfg.Email.Mailgun.EU,
			},
			SendGrid: transfer.SendGridConfig{APIKey: cfg.Email.SendGrid.APIKey},
		},
		HTTP: transfer.HTTPConfig{
			URL:         cfg.HTTP.URL,
			ContentType: cfg.HTTP.ContentType,
			Headers:     cfg.HTTP.Headers,
		},
		FTP: transfer.FTPConfig{
			Host:               cfg.FTP.Host,
			Port:               cfg.FTP.Port,
			Username:           cfg.FTP.Username,
			Password:           cfg.FTP.Password,
			Directory:          cfg.FTP.Directory,
			Passive:            cfg.FTP.Passive,
			DisableEPSV:        cfg.FTP.DisableEPSV,
			ImplicitTLS:        cfg.FTP.ImplicitTLS,
			InsecureSkipVerify: cfg.FTP.InsecureSkipVerify,
		},
		SFTP: transfer.SFTPConfig{
			Host:                  cfg.SFTP.Host,
			Port:                  cfg.SFTP.Port,
			Username:              cfg.SFTP.Username,
			Password:              cfg.SFTP.Password,
			PrivateKeyFile:        cfg.SFTP.PrivateKeyFile,
			Passphrase:            cfg.SFTP.Passphrase,
			KnownHostsFile:        cfg.SFTP.KnownHostsFile,
			InsecureIgnoreHostKey: cfg.SFTP.InsecureIgnoreHostKey,
			Directory:             cfg.SFTP.Directory,
		},
	}
}

// AutoExports converts the scheduled exports of cfg. The record types were
// checked by config validation.
func AutoExports(cfg *config.Config) []schedule.AutoExport {
	includeHeader := config.Bool(cfg.Export.IncludeHeader, config.DefaultExportIncludeHeader)
	out := make([]schedule.AutoExport, 0, len(cfg.Schedule.AutoExports))
	for _, ae := range cfg.Schedule.AutoExports {
		method := job.Method(ae.Method)
		if method == "" {
			method = job.MethodLocal
		}
		out = append(out, schedule.AutoExport{
			RecordType:      export.RecordType(ae.RecordType),
			FormatKey:       ae.Format,
			Method:          method,
			IntervalMinutes: ae.IntervalMinutes,
			Statuses:        ae.Statuses,
			IncludeHeader:   config.Bool(ae.IncludeHeader, includeHeader),
			AddBOM:          cfg.Export.AddBOM,
		})
	}
	return out
}
