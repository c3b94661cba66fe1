package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"vigil/internal/errors"
	"vigil/internal/logging"
	"vigil/internal/ratelimit"
)

// RateLimit enforces a per-client budget on the wrapped routes. The scope
// keeps budgets independent: a client exhausting the ingest budget can still
// read. The limiter failing is not the client's fault, so limiter errors fail
// open with a warning instead of rejecting traffic.
func RateLimit(limiter ratelimit.Limiter, scope string, limit ratelimit.Limit, logger logging.Logger) func(http.Handler) http.Handler {
	log := logger.WithComponent("ratelimit")

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.Check(r.Context(), scope+":"+clientIP(r), limit)
			if err != nil {
				log.Warn("rate limit check failed, admitting request", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

			if !result.Allowed {
				rateErr := errors.NewRateLimitError(result.Limit, limit.Window.String(), result.RetryAfter, result.Remaining)
				rateErr.WriteHTTPError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller address, trusting proxy headers when present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
