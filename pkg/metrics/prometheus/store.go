package prometheus

import (
	"errors"
	"time"

	"github.com/marmos91/mdus/pkg/metrics"
	"github.com/marmos91/mdus/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
//
// Every series carries a "backend" label so that a scrape identifies the
// configured store type.
type storeMetrics struct {
	backend           string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewStoreMetrics creates a Prometheus-backed StoreMetrics registered on the
// global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics(backend string) metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStoreMetrics()
	}
	return NewStoreMetricsWith(metrics.GetRegistry(), backend)
}

// NewStoreMetricsWith registers the store collectors on reg.
func NewStoreMetricsWith(reg prometheus.Registerer, backend string) metrics.StoreMetrics {
	return &storeMetrics{
		backend: backend,
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdus_store_operations_total",
				Help: "Total number of store operations by backend, operation type and status",
			},
			[]string{"backend", "operation", "status"}, // status: success, not_found, error
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mdus_store_operation_duration_seconds",
				Help: "Duration of store operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
			[]string{"backend", "operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdus_store_bytes_total",
				Help: "Total bytes read from or written to the store",
			},
			[]string{"backend", "operation"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdus_store_errors_total",
				Help: "Total number of store operation errors by operation type",
			},
			[]string{"backend", "operation"},
		),
	}
}

// ObserveOperation implements metrics.StoreMetrics.
//
// A missing file is not a backend failure and is counted as "not_found"
// without touching the error counter.
func (m *storeMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
		m.errorsTotal.WithLabelValues(m.backend, operation).Inc()
	}

	m.operationsTotal.WithLabelValues(m.backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(m.backend, operation).Observe(duration.Seconds())
}

// RecordBytes implements metrics.StoreMetrics.
func (m *storeMetrics) RecordBytes(operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(m.backend, operation).Add(float64(bytes))
}
