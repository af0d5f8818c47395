// Package metrics provides Prometheus metrics collection for the mdus
// dispatcher and HTTP adapter.
//
// All metrics are optional - if not initialized, components use no-op
// implementations that have zero overhead. This allows mdus to run with or
// without metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create the Prometheus-backed collector
//	dm := prometheus.NewDispatchMetrics()
//
//	// Or use nil for no-op behavior
//	pool := dispatch.NewPool(cfg, handler, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is the global Prometheus registry for all mdus metrics.
	// Protected by registryOnce for write-once, read-many pattern.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Besides the mdus collectors, the registry carries the standard Go runtime
// and process collectors so that goroutine counts (one per worker) and file
// descriptor usage are visible next to the dispatch metrics.
//
// Safe to call multiple times - subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry() has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
