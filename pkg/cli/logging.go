package cli

import (
	"io"

	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/telemetry/logging"
)

// SetupLogging builds the process logger from cfg and installs it as the
// slog default. w overrides the output when not nil.
func SetupLogging(cfg *config.LoggingConfig, w io.Writer) (*logging.Logger, error) {
	patterns := make([]logging.RedactPattern, len(cfg.RedactPatterns))
	for i, p := range cfg.RedactPatterns {
		patterns[i] = logging.RedactPattern{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
		}
	}

	logger, err := logging.New(logging.Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		RedactPII:      config.Bool(cfg.RedactPII, config.DefaultLoggingRedactPII),
		RedactPatterns: patterns,
		Writer:         w,
	})
	if err != nil {
		return nil, NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()
	return logger, nil
}
