package eurlex

import (
	"sync"
	"time"
)

// rateLimiter spaces outgoing requests so the public site is not
// hammered during pagination.
type rateLimiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &rateLimiter{interval: time.Second / time.Duration(requestsPerSecond)}
}

func (r *rateLimiter) waitTurn() {
	r.mu.Lock()
	now := time.Now()
	scheduled := now
	if r.nextAllowedAt.After(now) {
		scheduled = r.nextAllowedAt
	}
	r.nextAllowedAt = scheduled.Add(r.interval)
	r.mu.Unlock()

	if sleep := time.Until(scheduled); sleep > 0 {
		time.Sleep(sleep)
	}
}
