package metrics

import "time"

// DispatchMetrics provides observability for the request dispatcher and the
// HTTP adapter feeding it.
//
// Implementations must be safe for concurrent use: workers and the acceptor
// call into them from many goroutines at once.
//
// Example usage:
//
//	// With metrics enabled
//	dm := prometheus.NewDispatchMetrics()
//	pool := dispatch.NewPool(cfg, handler, dm)
//
//	// Without metrics (no-op)
//	pool := dispatch.NewPool(cfg, handler, nil)
type DispatchMetrics interface {
	// RecordEnqueued counts a request accepted into the hand-off buffer.
	RecordEnqueued()

	// RecordRejected counts a request dropped because the buffer was full.
	RecordRejected()

	// SetQueueDepth reports the number of requests waiting in the buffer.
	SetQueueDepth(depth int)

	// SetWorkersReady reports how many workers have passed the readiness
	// announcement.
	SetWorkersReady(count int)

	// SetWorkersBusy reports how many workers are currently serving a request.
	SetWorkersBusy(count int)

	// RecordRequest records a completed exchange.
	//
	// Parameters:
	//   - method: HTTP method (GET, PUT, ...)
	//   - status: HTTP status code sent to the client
	//   - duration: time from claim to reply
	RecordRequest(method string, status int, duration time.Duration)

	// RecordBytes records body bytes moved in one direction.
	//
	// Parameters:
	//   - direction: "in" (request bodies) or "out" (response bodies)
	//   - bytes: number of bytes
	RecordBytes(direction string, bytes uint64)
}

// NewNoopDispatchMetrics returns a DispatchMetrics that discards everything.
func NewNoopDispatchMetrics() DispatchMetrics {
	return noopDispatchMetrics{}
}

// noopDispatchMetrics is a no-op implementation of DispatchMetrics with zero overhead.
type noopDispatchMetrics struct{}

func (noopDispatchMetrics) RecordEnqueued()                                                 {}
func (noopDispatchMetrics) RecordRejected()                                                 {}
func (noopDispatchMetrics) SetQueueDepth(depth int)                                         {}
func (noopDispatchMetrics) SetWorkersReady(count int)                                       {}
func (noopDispatchMetrics) SetWorkersBusy(count int)                                        {}
func (noopDispatchMetrics) RecordRequest(method string, status int, duration time.Duration) {}
func (noopDispatchMetrics) RecordBytes(direction string, bytes uint64)                      {}
