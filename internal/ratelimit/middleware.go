package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Limiter errors fail open.
func Middleware(limiter Limiter, keyFunc KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("ratelimit: limiter error, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				secs := max(1, int(math.Ceil(d.RetryAfter.Seconds())))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc keys requests by the host part of RemoteAddr. X-Forwarded-For
// is not trusted.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
