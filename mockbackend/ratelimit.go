package mockbackend

import (
	"sync"
	"time"
)

// rateLimiter allows limit submissions per user within a sliding window
type rateLimiter struct {
	limit  int
	window time.Duration

	lock     sync.Mutex
	lastSubm map[string][]time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		window:   window,
		lastSubm: make(map[string][]time.Time),
	}
}

// Allow records an attempt at now and reports whether it is within the limit.
// A zero limit disables limiting.
func (l *rateLimiter) Allow(userID string, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	l.lock.Lock()
	defer l.lock.Unlock()

	recent := l.lastSubm[userID][:0]
	for _, t := range l.lastSubm[userID] {
		if now.Sub(t) < l.window {
			recent = append(recent, t)
		}
	}
	if len(recent) >= l.limit {
		l.lastSubm[userID] = recent
		return false
	}
	l.lastSubm[userID] = append(recent, now)
	return true
}
