// Package ratelimit serializes outbound requests to a single host so
// adapters sharing that host don't trip anti-bot defenses.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultMinDelay is the minimum gap between requests to one host.
const DefaultMinDelay = 1500 * time.Millisecond

// Limiter enforces a minimum delay between calls. Purely time-based, no
// token bucket; concurrent callers block FIFO on the mutex.
type Limiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     time.Time
}

// New returns a Limiter with the given minimum inter-request delay.
// A non-positive delay falls back to DefaultMinDelay.
func New(minDelay time.Duration) *Limiter {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	return &Limiter{minDelay: minDelay}
}

// Wait blocks until at least the minimum delay has elapsed since the
// previous Wait returned, then returns. The first call never blocks.
func (l *Limiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if gap := time.Until(l.last.Add(l.minDelay)); gap > 0 {
			time.Sleep(gap)
		}
	}
	l.last = time.Now()
}
