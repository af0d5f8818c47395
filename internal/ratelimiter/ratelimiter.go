package ratelimiter

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimiter gates a recurring event (typically a log line) using the
// token bucket algorithm from golang.org/x/time/rate, and counts how many
// occurrences were suppressed in between.
//
// The dispatcher uses it to keep queue-overflow warnings readable under
// sustained overload: the first few overflows are logged immediately, after
// which at most one line per interval is emitted, carrying the number of
// overflows that were swallowed since the previous line.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// New creates a RateLimiter allowing eventsPerSecond sustained events with
// the given burst.
//
// Special cases:
//   - eventsPerSecond = 0: no limiting, every event is allowed
//   - burst = 0: treated as 1 so that at least one event can pass
func New(eventsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(eventsPerSecond)
	if eventsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Allow reports whether the current event may be emitted.
//
// Returns:
//   - ok: true if a token was available
//   - suppressed: when ok, the number of events dropped since the last
//     allowed one (the counter is reset); when not ok, always 0
func (r *RateLimiter) Allow() (ok bool, suppressed uint64) {
	if !r.limiter.Allow() {
		r.suppressed.Add(1)
		return false, 0
	}
	return true, r.suppressed.Swap(0)
}

// Suppressed returns the number of events dropped since the last allowed one.
func (r *RateLimiter) Suppressed() uint64 {
	return r.suppressed.Load()
}
