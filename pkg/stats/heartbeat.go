package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/mdus/internal/logger"
)

// Heartbeat periodically logs the session counters.
type Heartbeat struct {
	stats    *SessionStats
	interval time.Duration
	report   func(Snapshot)
}

// NewHeartbeat creates a heartbeat reporting every interval. A non-positive
// interval disables it: Run returns immediately.
func NewHeartbeat(s *SessionStats, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		stats:    s,
		interval: interval,
		report: func(snap Snapshot) {
			logger.Info("%s", FormatHeartbeat(snap))
		},
	}
}

// Enabled reports whether Run will emit anything.
func (h *Heartbeat) Enabled() bool {
	return h.interval > 0
}

// Run emits a report on every tick until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	if !h.Enabled() {
		return nil
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.report(h.stats.Snapshot())
		}
	}
}

// FormatHeartbeat renders a snapshot as the human-readable heartbeat line.
func FormatHeartbeat(snap Snapshot) string {
	return fmt.Sprintf("heartbeat: server is alive. we have received %d requests (aggregate %d bytes) and sent %d responses (aggregate %d bytes).",
		snap.Requests, snap.BytesReceived, snap.Responses, snap.BytesSent)
}
