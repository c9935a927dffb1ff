package signal

import (
	"sync"
	"time"
)

// eventLimiter is a sliding-window limiter for one connection's inbound
// events. Sends to the connection are unaffected.
type eventLimiter struct {
	mu       sync.Mutex
	history  []time.Time
	limit    int
	interval time.Duration
}

func newEventLimiter(limit int, interval time.Duration) *eventLimiter {
	return &eventLimiter{limit: limit, interval: interval}
}

func (rl *eventLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.limit <= 0 {
		return true
	}

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	fresh := rl.history[:0]
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history = fresh
		return false
	}

	rl.history = append(fresh, now)
	return true
}
