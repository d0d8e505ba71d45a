package warmup

import (
	"time"
)

// DefaultPeriod is the delay between lock creation and the lock's power counting.
const DefaultPeriod = 3 * 24 * time.Hour

// Gate decides whether a lock has left its warmup window. It holds no state besides the
// period, so the answer is recomputed from the clock on every call.
type Gate struct {
	period time.Duration
}

func NewGate(period time.Duration) *Gate {
	if period < 0 {
		period = 0
	}
	return &Gate{period: period}
}

func (g *Gate) Period() time.Duration {
	return g.period
}

// EndsAt returns the instant warmup completes for a lock created at createdAt
func (g *Gate) EndsAt(createdAt time.Time) time.Time {
	return createdAt.Add(g.period)
}

// IsComplete reports now >= createdAt + period
func (g *Gate) IsComplete(createdAt, now time.Time) bool {
	return !now.Before(g.EndsAt(createdAt))
}

// Remaining returns the countdown until warmup completes, never negative
func (g *Gate) Remaining(createdAt, now time.Time) time.Duration {
	remaining := g.EndsAt(createdAt).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
