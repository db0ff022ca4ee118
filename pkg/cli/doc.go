/*
Package cli holds what the courier command needs beyond cobra: wiring of
the export engine from configuration, logging setup, output formatting,
progress reporting and signal handling.

Wiring:

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	app, err := cli.NewApp(ctx, cfg)
	defer app.Close()
	go app.Worker().Run(ctx)
	app.Scheduler().Start(ctx)
	app.Server().Start(ctx)

Output Formatting:

Commands print a Table, rendered as aligned text, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "records")
	progress.Start(int64(len(ids)))
	progress.Update(int64(j.Cursor))
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
