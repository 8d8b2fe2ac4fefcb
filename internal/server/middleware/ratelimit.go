package middleware

import (
	"log"
	"net"
	"net/http"

	"gameboard/internal/ratelimit"
)

// RateLimit caps requests per client IP using the given limiter. A nil
// limiter disables the middleware. Limiter errors fail open: an unavailable
// Redis must not take the auth endpoints down with it.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				log.Printf("ratelimit: check failed, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's client IP. RemoteAddr has already been
// rewritten by chi's RealIP middleware when forwarding headers are present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
