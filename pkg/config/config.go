package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete mdus configuration.
//
// This structure captures all configurable aspects of the mdus daemon:
//   - Logging configuration
//   - Listener, worker pool and protocol settings
//   - Store selection and configuration (store-specific)
//   - Prometheus metrics endpoint
//   - Log throttling under overload
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, see ApplyFlags)
//  2. Environment variables (MDUS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type and factory function.
// The Config struct contains type-specific sections (e.g., store.filesystem, store.s3)
// and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains listener, pool and protocol settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Store specifies the store type and type-specific configuration
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// RateLimit throttles repetitive warnings under overload
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output is "stdout", "stderr" or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`

	// Color controls coloured level tags: auto (terminal only), always or never
	Color string `mapstructure:"color" yaml:"color" validate:"required,oneof=auto always never"`
}

// ServerConfig contains the listener, worker pool and protocol settings.
type ServerConfig struct {
	// Host is the address the HTTP listener binds to
	Host string `mapstructure:"host" yaml:"host" validate:"required"`

	// Port is the HTTP listener port
	Port int `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// Threads is the number of worker goroutines
	Threads int `mapstructure:"threads" yaml:"threads" validate:"min=1"`

	// NoWarnThreads suppresses the warning for an unusually large pool
	NoWarnThreads bool `mapstructure:"no_warn_threads" yaml:"no_warn_threads"`

	// QueueCapacity is the number of requests the hand-off buffer holds
	// before new requests are rejected with 503
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity" validate:"min=1"`

	// HeartbeatInterval is the heartbeat period in seconds.
	// -1 disables the heartbeat. 0 in a file selects the default.
	HeartbeatInterval int `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval" validate:"min=-1"`

	// DryRun sets everything up and exits without accepting requests
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// ShutdownTimeout bounds the graceful shutdown sequence
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// ReadTimeout bounds reading a complete request
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout bounds writing a response (0 = no timeout)
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`

	// IdleTimeout closes idle keep-alive connections
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`

	// StrictPaths rejects file names that could escape the files directory
	StrictPaths bool `mapstructure:"strict_paths" yaml:"strict_paths"`

	// FilesPrefix is the request target prefix that maps onto the store
	FilesPrefix string `mapstructure:"files_prefix" yaml:"files_prefix" validate:"required,endswith=/"`

	// MaxMessageSize is the largest number of bytes a PUT stores
	MaxMessageSize int64 `mapstructure:"max_message_size" yaml:"max_message_size" validate:"gt=0"`

	// MaxBodySize is the largest number of request body bytes read
	MaxBodySize int64 `mapstructure:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
}

// StoreConfig specifies the store backend.
type StoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: filesystem, memory, s3, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3 badger"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled starts the /metrics listener
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Host is the metrics listener address
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the metrics listener port
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// RateLimitConfig throttles the queue-overflow warning.
type RateLimitConfig struct {
	// OverflowLogPerSecond is the sustained rate of overflow warnings
	OverflowLogPerSecond float64 `mapstructure:"overflow_log_per_second" yaml:"overflow_log_per_second" validate:"gte=0"`

	// OverflowLogBurst is the number of warnings allowed back to back
	OverflowLogBurst int `mapstructure:"overflow_log_burst" yaml:"overflow_log_burst" validate:"gte=0"`
}

// envKeys are bound explicitly so that MDUS_* variables apply even when no
// configuration file mentions the key.
var envKeys = []string{
	"logging.level",
	"logging.output",
	"logging.color",
	"server.host",
	"server.port",
	"server.threads",
	"server.no_warn_threads",
	"server.queue_capacity",
	"server.heartbeat_interval",
	"server.dry_run",
	"server.shutdown_timeout",
	"server.strict_paths",
	"server.files_prefix",
	"server.max_message_size",
	"server.max_body_size",
	"store.type",
	"metrics.enabled",
	"metrics.host",
	"metrics.port",
}

// Load loads configuration from file, environment variables, and defaults.
//
// The configuration file is searched in the following order:
//  1. Path specified by configPath parameter (if not empty)
//  2. $XDG_CONFIG_HOME/mdus/config.yaml
//  3. ~/.config/mdus/config.yaml
//
// A missing file is not an error: defaults and environment apply.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use MDUS_ prefix and underscores
	// Example: MDUS_SERVER_PORT=9000
	v.SetEnvPrefix("MDUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Booleans that default to true cannot go through ApplyDefaults
	v.SetDefault("server.strict_paths", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is reported as a plain
		// fs error rather than ConfigFileNotFoundError
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mdus")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "mdus")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// HeartbeatDuration converts HeartbeatInterval into a duration. Non-positive
// values yield 0, which disables the heartbeat.
func (c *ServerConfig) HeartbeatDuration() time.Duration {
	if c.HeartbeatInterval <= 0 {
		return 0
	}
	return time.Duration(c.HeartbeatInterval) * time.Second
}
