package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/mdus/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// dispatchMetrics is the Prometheus implementation of metrics.DispatchMetrics.
type dispatchMetrics struct {
	enqueued        prometheus.Counter
	rejected        prometheus.Counter
	queueDepth      prometheus.Gauge
	workersReady    prometheus.Gauge
	workersBusy     prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesTotal      *prometheus.CounterVec
}

// NewDispatchMetrics creates a Prometheus-backed DispatchMetrics registered
// on the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewDispatchMetrics() metrics.DispatchMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopDispatchMetrics()
	}
	return NewDispatchMetricsWith(metrics.GetRegistry())
}

// NewDispatchMetricsWith registers the dispatch collectors on reg.
func NewDispatchMetricsWith(reg prometheus.Registerer) metrics.DispatchMetrics {
	return &dispatchMetrics{
		enqueued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mdus_dispatch_enqueued_total",
				Help: "Total number of requests accepted into the hand-off buffer",
			},
		),
		rejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mdus_dispatch_rejected_total",
				Help: "Total number of requests rejected because the hand-off buffer was full",
			},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "mdus_dispatch_queue_depth",
				Help: "Current number of requests waiting in the hand-off buffer",
			},
		),
		workersReady: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "mdus_dispatch_workers_ready",
				Help: "Number of workers that have announced readiness",
			},
		),
		workersBusy: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "mdus_dispatch_workers_busy",
				Help: "Number of workers currently serving a request",
			},
		),
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdus_http_requests_total",
				Help: "Total number of HTTP exchanges by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "mdus_http_request_duration_milliseconds",
				Help: "Time from claim to reply in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"method"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdus_http_body_bytes_total",
				Help: "Total body bytes received (in) and sent (out)",
			},
			[]string{"direction"},
		),
	}
}

func (m *dispatchMetrics) RecordEnqueued() {
	m.enqueued.Inc()
}

func (m *dispatchMetrics) RecordRejected() {
	m.rejected.Inc()
}

func (m *dispatchMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *dispatchMetrics) SetWorkersReady(count int) {
	m.workersReady.Set(float64(count))
}

func (m *dispatchMetrics) SetWorkersBusy(count int) {
	m.workersBusy.Set(float64(count))
}

func (m *dispatchMetrics) RecordRequest(method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *dispatchMetrics) RecordBytes(direction string, bytes uint64) {
	m.bytesTotal.WithLabelValues(direction).Add(float64(bytes))
}
