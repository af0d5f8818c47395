package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDispatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetricsWith(reg).(*dispatchMetrics)

	m.RecordEnqueued()
	m.RecordEnqueued()
	m.RecordRejected()
	m.SetQueueDepth(3)
	m.SetWorkersReady(7)
	m.SetWorkersBusy(2)
	m.RecordRequest("GET", 200, 5*time.Millisecond)
	m.RecordRequest("GET", 404, time.Millisecond)
	m.RecordRequest("PUT", 200, time.Millisecond)
	m.RecordBytes("in", 100)
	m.RecordBytes("out", 40)
	m.RecordBytes("out", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.enqueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.workersReady))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.workersBusy))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "404")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.bytesTotal.WithLabelValues("in")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.bytesTotal.WithLabelValues("out")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestNewDispatchMetrics_DisabledIsNoop(t *testing.T) {
	// The global registry is never initialized in this package's tests
	m := NewDispatchMetrics()
	_, isPrometheus := m.(*dispatchMetrics)
	assert.False(t, isPrometheus)

	// Must not panic
	m.RecordEnqueued()
	m.RecordRequest("GET", 200, time.Millisecond)
}
