package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(now *time.Time) *RateLimiter {
	rl := NewRateLimiter()
	rl.now = func() time.Time { return *now }
	return rl
}

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(&now)

	for i := range 5 {
		if ok, _ := rl.Allow("key", 5, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, resetAt := rl.Allow("key", 5, time.Minute)
	if ok {
		t.Error("6th request should be denied")
	}
	if !resetAt.Equal(now.Add(time.Minute)) {
		t.Errorf("resetAt = %v, want %v", resetAt, now.Add(time.Minute))
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(&now)

	for range 3 {
		rl.Allow("key", 3, time.Minute)
	}
	if ok, _ := rl.Allow("key", 3, time.Minute); ok {
		t.Error("should be blocked within window")
	}

	now = now.Add(time.Minute)
	if ok, _ := rl.Allow("key", 3, time.Minute); !ok {
		t.Error("should be allowed after window closes")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(&now)

	rl.Allow("expired", 5, time.Second)
	now = now.Add(2 * time.Second)
	rl.Allow("active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.windows["expired"]; ok {
		t.Error("expired window should have been cleaned up")
	}
	if _, ok := rl.windows["active"]; !ok {
		t.Error("active window should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()

	handler := RateLimit(rl, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := range 2 {
		req := httptest.NewRequest("POST", "/api/login", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest("POST", "/api/login", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Other routes have their own budget.
	req = httptest.NewRequest("POST", "/api/signup/code", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other route: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "1.1.1.1"}, "9.9.9.9:1", "1.1.1.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "2.2.2.2, 3.3.3.3"}, "9.9.9.9:1", "2.2.2.2"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
