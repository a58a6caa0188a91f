package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts attempts per key in fixed windows. Login and signup
// endpoints share one limiter keyed by route and client IP.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow reports whether key is still within limit for the current window,
// and when the window resets.
func (rl *RateLimiter) Allow(key string, limit int, per time.Duration) (bool, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(per)}
		rl.windows[key] = w
	}
	w.count++
	return w.count <= limit, w.resetAt
}

// Cleanup drops windows that have closed.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimit returns middleware that limits requests per client IP and route.
func RateLimit(limiter *RateLimiter, limit int, per time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, resetAt := limiter.Allow(r.URL.Path+"|"+RealIP(r), limit, per)
			if !ok {
				retry := max(1, int(resetAt.Sub(limiter.now()).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "Muitas tentativas. Tente novamente mais tarde.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
