package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/export"
)

// loadConfig reads the --config file with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// openApp loads configuration, sets up logging on stderr and wires the
// engine. The caller closes the App.
func openApp(ctx context.Context, cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := cli.SetupLogging(&cfg.Telemetry.Logging, cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	return cli.NewApp(ctx, cfg)
}

// render writes data in the --output format.
func render(w io.Writer, data any) error {
	f, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(f).FormatTo(w, data)
}

func parseRecordType(s string) (export.RecordType, error) {
	t, err := export.ParseRecordType(s)
	if err != nil {
		return "", cli.NewConfigError("type", err.Error())
	}
	return t, nil
}
