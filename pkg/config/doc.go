// Package config provides configuration management for courier.
//
// Configuration is loaded from a YAML file, completed with defaults,
// overridden from the environment and validated before use.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention COURIER_SECTION_FIELD.
// For example:
//
//   - COURIER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - COURIER_EXPORT_CHUNK_SIZE overrides export.chunk_size
//   - COURIER_TRANSFER_SFTP_PASSWORD overrides transfer.sftp.password
//
// Transfer credentials are normally supplied this way rather than written to
// the file.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Flags that default to true are pointers so an explicit false in the file
// survives ApplyDefaults; read them with Bool.
//
// There is no package-level configuration. Load once at startup and pass
// the *Config to the components that need it.
package config
