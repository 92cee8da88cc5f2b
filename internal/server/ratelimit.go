package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedLimiters bounds the limiter map before limiters of ended
// sessions are pruned.
const maxTrackedLimiters = 1024

// sessionLimiter hands out one token bucket per session.
type sessionLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// newSessionLimiter returns nil when perSecond is not positive, which
// disables rate limiting. A non-positive burst defaults to one second's
// worth of requests.
func newSessionLimiter(perSecond float64, burst int) *sessionLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &sessionLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// allow reports whether the session may make another request now.
// alive is consulted when the map is full to drop limiters of sessions
// that no longer exist.
func (l *sessionLimiter) allow(sessionID string, alive func(id string) bool) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[sessionID]
	if !ok {
		if len(l.limiters) >= maxTrackedLimiters && alive != nil {
			for id := range l.limiters {
				if !alive(id) {
					delete(l.limiters, id)
				}
			}
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[sessionID] = lim
	}
	return lim.AllowN(l.now(), 1)
}

func (l *sessionLimiter) forget(sessionID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.limiters, sessionID)
	l.mu.Unlock()
}

func (l *sessionLimiter) tracked() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
