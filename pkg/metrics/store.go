package metrics

import "time"

// StoreMetrics provides observability for storage backend operations.
//
// Operations are reported by name:
//   - "open": opening a file for a GET
//   - "read": streaming an opened file to the client
//   - "write": storing a PUT body
//
// Example usage:
//
//	sm := prometheus.NewStoreMetrics("filesystem")
//	st = store.WithMetrics(st, sm)
type StoreMetrics interface {
	// ObserveOperation records a completed backend operation.
	//
	// Parameters:
	//   - operation: Operation name (open, read, write)
	//   - duration: Time spent in the backend
	//   - err: Error returned by the backend (nil on success)
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by an operation.
	RecordBytes(operation string, bytes int64)
}

// NewNoopStoreMetrics returns a StoreMetrics that discards everything.
func NewNoopStoreMetrics() StoreMetrics {
	return noopStoreMetrics{}
}

type noopStoreMetrics struct{}

func (noopStoreMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopStoreMetrics) RecordBytes(operation string, bytes int64)                            {}
