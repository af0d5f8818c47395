// Package stats keeps the process-wide traffic counters reported by the
// heartbeat.
//
// The four counters are independent atomics. No ordering is guaranteed
// between them: a reader may observe a request counted before the matching
// bytes, which is acceptable for a diagnostic report.
package stats

import "sync/atomic"

// SessionStats aggregates traffic since process start.
//
// The zero value is ready to use. All methods are safe for concurrent use.
type SessionStats struct {
	sent      atomic.Uint64
	received  atomic.Uint64
	requests  atomic.Uint64
	responses atomic.Uint64
}

// Snapshot is a point-in-time copy of SessionStats.
type Snapshot struct {
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
	Requests      uint64 `json:"requests"`
	Responses     uint64 `json:"responses"`
}

// New returns a zeroed SessionStats.
func New() *SessionStats {
	return &SessionStats{}
}

// RecordExchange records one side of an HTTP exchange.
//
// Parameters:
//   - isRequest: true for an inbound request, false for an outbound response
//   - bytes: body size of that side of the exchange
func (s *SessionStats) RecordExchange(isRequest bool, bytes uint64) {
	if isRequest {
		s.requests.Add(1)
		s.received.Add(bytes)
		return
	}
	s.responses.Add(1)
	s.sent.Add(bytes)
}

// RecordRequest records an inbound request carrying bytes of body.
func (s *SessionStats) RecordRequest(bytes uint64) {
	s.RecordExchange(true, bytes)
}

// RecordResponse records an outbound response carrying bytes of body.
func (s *SessionStats) RecordResponse(bytes uint64) {
	s.RecordExchange(false, bytes)
}

// Snapshot loads each counter independently.
func (s *SessionStats) Snapshot() Snapshot {
	return Snapshot{
		BytesSent:     s.sent.Load(),
		BytesReceived: s.received.Load(),
		Requests:      s.requests.Load(),
		Responses:     s.responses.Load(),
	}
}
