package config

import (
	"strings"
	"time"

	"github.com/marmos91/mdus/pkg/dispatch"
	"github.com/marmos91/mdus/pkg/protocol/files"
	"github.com/marmos91/mdus/pkg/store/fs"
)

// Default values for the server section.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 8000
	DefaultThreads           = 7
	DefaultHeartbeatInterval = 120
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultIdleTimeout       = 2 * time.Minute
	DefaultMetricsPort       = 9090

	// ThreadWarnThreshold is the pool size at which a warning is logged
	// unless no_warn_threads is set.
	ThreadWarnThreshold = 64
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are filled into the type-specific maps
//
// StrictPaths is a bool and cannot tell "unset" from "false" after
// unmarshalling, so it is registered as a viper default in Load and set
// explicitly by GetDefaultConfig.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyMetricsDefaults(&cfg.Metrics)
	applyRateLimitDefaults(&cfg.RateLimit)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}
}

// applyServerDefaults sets listener, pool and protocol defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Threads == 0 {
		cfg.Threads = DefaultThreads
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = dispatch.DefaultCapacity
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.FilesPrefix == "" {
		cfg.FilesPrefix = files.DefaultPrefix
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = files.DefaultMaxMessageSize
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = files.DefaultMaxMessageSize
	}
}

// applyStoreDefaults sets store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	// Initialize maps if nil
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	setDefault(cfg.Filesystem, "root", ".")
	setDefault(cfg.Filesystem, "dir", fs.DefaultDir)
	setDefault(cfg.Filesystem, "create_dir", true)
	setDefault(cfg.Memory, "max_size", int64(0))
	setDefault(cfg.S3, "region", "us-east-1")
	setDefault(cfg.S3, "bucket", "mdus")
	setDefault(cfg.S3, "key_prefix", "files/")
	setDefault(cfg.Badger, "path", "mdus-data")
}

// applyMetricsDefaults sets metrics endpoint defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// applyRateLimitDefaults sets log throttling defaults.
func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.OverflowLogPerSecond == 0 {
		cfg.OverflowLogPerSecond = 1
	}
	if cfg.OverflowLogBurst == 0 {
		cfg.OverflowLogBurst = 10
	}
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			StrictPaths: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
