package httputil

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles requests per client IP. Used on the
// login endpoint to slow down credential guessing. Limiters for idle
// clients are evicted periodically.
func RateLimitMiddleware(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	rl := &ipRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rps,
		burst:    burst,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(r.RemoteAddr) {
				Error(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

func (rl *ipRateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[addr]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[addr] = entry
	}
	entry.lastSeen = time.Now()

	// Opportunistic cleanup to keep the map bounded.
	if len(rl.limiters) > 10000 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, v := range rl.limiters {
			if v.lastSeen.Before(cutoff) {
				delete(rl.limiters, k)
			}
		}
	}

	return entry.limiter.Allow()
}
