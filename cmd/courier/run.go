package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export/job"
	"mercator-hq/courier/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	noServer      bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the API server, export workers and scheduler",
	Long: `Start the long-running Courier process.

The process serves the HTTP API, drains the export queue with a worker pool,
and runs the auto export and cleanup schedule when enabled. Unfinished jobs
from a previous run are resumed on start.

Examples:
  # Start with defaults (SQLite under ./data)
  courier run

  # Start with a config file
  courier run --config /etc/courier/courier.yaml

  # Workers and scheduler only
  courier run --no-server

  # Validate config without starting
  courier run --dry-run`,
	RunE: runCourier,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.noServer, "no-server", false, "do not start the HTTP API")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runCourier(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := cli.SetupLogging(&cfg.Telemetry.Logging, nil)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	sigCtx, stop := cli.SetupSignalHandler(ctxOrBackground(cmd))
	defer stop()

	app, err := cli.NewApp(sigCtx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Build = server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}

	if rq, ok := app.Queue.(*job.RedisQueue); ok {
		n, err := rq.Recover(sigCtx)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to recover export queue: %w", err))
		}
		if n > 0 {
			logger.Info("Recovered in-flight queue entries", "count", n)
		}
	}
	resumed, err := app.Manager.Resume(sigCtx)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to resume jobs: %w", err))
	}
	logger.Info("Courier starting",
		"version", Version,
		"records", cfg.Records.Backend,
		"storage", cfg.Storage.Backend,
		"queue", cfg.Queue.Backend,
		"resumed_jobs", resumed,
	)

	if config.Bool(cfg.Schedule.Enabled, config.DefaultScheduleEnabled) {
		s := app.Scheduler()
		if err := s.Start(sigCtx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer s.Stop()
		if next := s.NextRun(); next != nil {
			logger.Debug("Scheduler started", "entries", s.Entries(), "next_run", next)
		}
	}

	g, ctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return app.Worker().Run(ctx)
	})

	if app.Watcher != nil {
		g.Go(func() error {
			return app.Watcher.Watch(ctx, nil)
		})
	}

	if !runFlags.noServer {
		srv := app.Server()
		g.Go(func() error {
			return srv.Start(ctx)
		})
		fmt.Fprintf(cmd.OutOrStdout(), "✓ API listening on %s\n", cfg.Server.ListenAddress)
	}

	if err := g.Wait(); err != nil && sigCtx.Err() == nil {
		return cli.NewCommandError("run", err)
	}
	slog.Info("Courier stopped")
	return nil
}

// ctxOrBackground returns the command context, which is nil when a command
// runs outside Execute in tests.
func ctxOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
