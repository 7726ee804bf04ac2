package http

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const rateWindow = time.Minute

// rateLimiter admits at most limit inbound messages per connection in each
// fixed window. A zero limit admits everything.
type rateLimiter struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	limit       int
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, clock clockwork.Clock) *rateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &rateLimiter{
		clock:       clock,
		limit:       limit,
		windowStart: clock.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if now := r.clock.Now(); now.Sub(r.windowStart) >= rateWindow {
		r.windowStart = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
