package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a per-client token bucket in front of the paid extraction
// routes. It is separate from the per-user daily quota: the quota bounds
// spend, the throttle bounds bursts.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	lastGC   time.Time
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows rps requests per second per client with the given burst.
func NewThrottle(rps float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limiters: make(map[string]*throttleEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastGC) > t.idleTTL {
		for k, e := range t.limiters {
			if now.Sub(e.lastSeen) > t.idleTTL {
				delete(t.limiters, k)
			}
		}
		t.lastGC = now
	}

	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Allow reports whether a request from key may proceed now.
func (t *Throttle) Allow(key string) bool {
	return t.limiter(key).AllowN(t.now(), 1)
}

// Limit is the middleware form. Clients are keyed by RemoteAddr host, which
// chi's RealIP middleware has already resolved from forwarding headers.
func (t *Throttle) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}

		if !t.Allow(key) {
			retry := 1
			if t.rate > 0 {
				retry = int(time.Duration(float64(time.Second)/float64(t.rate)).Round(time.Second) / time.Second)
				if retry < 1 {
					retry = 1
				}
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			reject(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
