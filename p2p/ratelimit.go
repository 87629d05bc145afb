package p2p

import (
	"sync"
	"time"
)

// RateCounter tracks message counts over a rolling 60 s window, one per
// direction per connection (spec §4.2). Exceeding socketRateLimitPerMin
// marks the connection abusive.
type RateCounter struct {
	mu      sync.Mutex
	window  time.Duration
	bucket  time.Time
	count   int
	limit   int
}

// NewRateCounter builds a counter with the default 60 s window.
func NewRateCounter(limit int) *RateCounter {
	return &RateCounter{window: time.Minute, limit: limit}
}

// Allow records one message and reports whether the rolling-window budget
// is still within limit. The window resets wholesale rather than sliding
// precisely, giving per-minute granularity without a timer per message.
func (r *RateCounter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.bucket) >= r.window {
		r.bucket = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}

func (r *RateCounter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
