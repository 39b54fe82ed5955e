package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/EmpoweredVote/memoboard/internal/httpx"
	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/metrics"
	"github.com/EmpoweredVote/memoboard/internal/ratelimit"
)

// Throttle is a coarse per-IP token bucket in front of the whole API. The
// fixed-window rules on login and password endpoints still apply on top.
type Throttle struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func NewThrottle(rps float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:       rate.Limit(rps),
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Buckets that have refilled completely belong to idle clients.
	if time.Since(t.lastCleanup) > 5*time.Minute {
		for k, l := range t.limiters {
			if l.Tokens() >= float64(t.burst) {
				delete(t.limiters, k)
			}
		}
		t.lastCleanup = time.Now()
	}

	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = l
	}
	return l
}

// Middleware rejects requests over the bucket with 429. A non-positive rate
// disables the throttle.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	if t == nil || t.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.ClientIP(r)
		l := t.limiter(key)
		if l.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		reservation := l.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		metrics.RecordRateLimited("api")
		logging.FromContext(r.Context()).Warn("api throttle exceeded", "key", key, "path", r.URL.Path)
		httpx.TooMany(w, r, delay)
	})
}
