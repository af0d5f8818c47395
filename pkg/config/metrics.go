package config

import (
	"github.com/marmos91/mdus/pkg/metrics"
	promMetrics "github.com/marmos91/mdus/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Dispatch is the collector for the pool and the protocol handler
	// (never nil, uses noop if disabled)
	Dispatch metrics.DispatchMetrics

	// Store is the collector for backend operations (nil if disabled, which
	// leaves the store unwrapped)
	Store metrics.StoreMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:   nil,
			Dispatch: metrics.NewNoopDispatchMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Host: cfg.Metrics.Host,
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:   server,
		Dispatch: promMetrics.NewDispatchMetrics(),
		Store:    promMetrics.NewStoreMetrics(cfg.Store.Type),
	}
}
