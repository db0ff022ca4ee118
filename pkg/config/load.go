package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "COURIER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention COURIER_SECTION_FIELD (e.g., COURIER_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
// An empty path starts from the defaults alone.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envBoolPtr(name string, dst **bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envList(name string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format COURIER_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("RECORDS_BACKEND", &cfg.Records.Backend)
	envString("RECORDS_PATH", &cfg.Records.Path)
	envString("FORMATS_BACKEND", &cfg.Formats.Backend)
	envString("FORMATS_PATH", &cfg.Formats.Path)
	envBool("FORMATS_WATCH", &cfg.Formats.Watch)
	envString("FILES_DIRECTORY", &cfg.Files.Directory)
	envInt("FILES_RETENTION_DAYS", &cfg.Files.RetentionDays)

	// Export overrides
	envInt("EXPORT_CHUNK_SIZE", &cfg.Export.ChunkSize)
	envInt("EXPORT_WORKERS", &cfg.Export.Workers)
	envDuration("EXPORT_LEASE_TTL", &cfg.Export.LeaseTTL)
	envString("EXPORT_DATE_FORMAT", &cfg.Export.DateFormat)
	envString("EXPORT_TIMEZONE", &cfg.Export.Timezone)
	envBool("EXPORT_ADD_BOM", &cfg.Export.AddBOM)
	if val := os.Getenv(EnvPrefix + "EXPORT_PRICE_DECIMALS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Export.PriceDecimals = &i
		}
	}

	// Queue overrides
	envString("QUEUE_BACKEND", &cfg.Queue.Backend)
	envString("QUEUE_REDIS_ADDR", &cfg.Queue.Redis.Addr)
	envString("QUEUE_REDIS_USERNAME", &cfg.Queue.Redis.Username)
	envString("QUEUE_REDIS_PASSWORD", &cfg.Queue.Redis.Password)
	envInt("QUEUE_REDIS_DB", &cfg.Queue.Redis.DB)

	// Schedule overrides
	envBoolPtr("SCHEDULE_ENABLED", &cfg.Schedule.Enabled)
	envDuration("SCHEDULE_CLEANUP_INTERVAL", &cfg.Schedule.CleanupInterval)

	// Transfer overrides; secrets are usually supplied this way
	envDuration("TRANSFER_TIMEOUT", &cfg.Transfer.Timeout)
	envString("TRANSFER_EMAIL_PROVIDER", &cfg.Transfer.Email.Provider)
	envString("TRANSFER_EMAIL_FROM", &cfg.Transfer.Email.From)
	envList("TRANSFER_EMAIL_TO", &cfg.Transfer.Email.To)
	envString("TRANSFER_EMAIL_SMTP_HOST", &cfg.Transfer.Email.SMTP.Host)
	envInt("TRANSFER_EMAIL_SMTP_PORT", &cfg.Transfer.Email.SMTP.Port)
	envString("TRANSFER_EMAIL_SMTP_USERNAME", &cfg.Transfer.Email.SMTP.Username)
	envString("TRANSFER_EMAIL_SMTP_PASSWORD", &cfg.Transfer.Email.SMTP.Password)
	envString("TRANSFER_EMAIL_MAILGUN_DOMAIN", &cfg.Transfer.Email.Mailgun.Domain)
	envString("TRANSFER_EMAIL_MAILGUN_API_KEY", &cfg.Transfer.Email.Mailgun.APIKey)
	envString("TRANSFER_EMAIL_SENDGRID_API_KEY", &cfg.Transfer.Email.SendGrid.APIKey)
	envString("TRANSFER_HTTP_URL", &cfg.Transfer.HTTP.URL)
	envString("TRANSFER_FTP_HOST", &cfg.Transfer.FTP.Host)
	envInt("TRANSFER_FTP_PORT", &cfg.Transfer.FTP.Port)
	envString("TRANSFER_FTP_USERNAME", &cfg.Transfer.FTP.Username)
	envString("TRANSFER_FTP_PASSWORD", &cfg.Transfer.FTP.Password)
	envString("TRANSFER_FTP_DIRECTORY", &cfg.Transfer.FTP.Directory)
	envString("TRANSFER_SFTP_HOST", &cfg.Transfer.SFTP.Host)
	envInt("TRANSFER_SFTP_PORT", &cfg.Transfer.SFTP.Port)
	envString("TRANSFER_SFTP_USERNAME", &cfg.Transfer.SFTP.Username)
	envString("TRANSFER_SFTP_PASSWORD", &cfg.Transfer.SFTP.Password)
	envString("TRANSFER_SFTP_PRIVATE_KEY_FILE", &cfg.Transfer.SFTP.PrivateKeyFile)
	envString("TRANSFER_SFTP_PASSPHRASE", &cfg.Transfer.SFTP.Passphrase)
	envString("TRANSFER_SFTP_KNOWN_HOSTS_FILE", &cfg.Transfer.SFTP.KnownHostsFile)
	envString("TRANSFER_SFTP_DIRECTORY", &cfg.Transfer.SFTP.Directory)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBoolPtr("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBoolPtr("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}
