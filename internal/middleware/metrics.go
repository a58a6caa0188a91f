package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redevirtus/virtus/internal/metrics"
)

// Instrument counts requests and observes latency per matched route pattern.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
