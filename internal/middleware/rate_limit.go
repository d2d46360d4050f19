package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP. When the number of
// tracked IPs reaches maxEntries the least recently seen entry is evicted.
type IPRateLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	maxEntries int
	visitors   map[string]*visitor
	now        func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiterWithMaxEntries(limit, window, 10000)
}

func NewIPRateLimiterWithMaxEntries(limit int, window time.Duration, maxEntries int) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &IPRateLimiter{
		limit:      rate.Every(window / time.Duration(limit)),
		burst:      limit,
		maxEntries: maxEntries,
		visitors:   map[string]*visitor{},
		now:        time.Now,
	}
}

func (rl *IPRateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r.RemoteAddr)
			if ip == "" {
				ip = "unknown"
			}
			if !rl.allow(ip) {
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		if len(rl.visitors) >= rl.maxEntries {
			rl.evictOldestLocked()
		}
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (rl *IPRateLimiter) evictOldestLocked() {
	var (
		oldestIP string
		oldest   time.Time
	)
	for ip, v := range rl.visitors {
		if oldestIP == "" || v.lastSeen.Before(oldest) {
			oldestIP, oldest = ip, v.lastSeen
		}
	}
	delete(rl.visitors, oldestIP)
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
