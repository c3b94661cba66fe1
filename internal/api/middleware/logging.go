// Package middleware holds the HTTP middleware the API router composes:
// request logging, rate limiting, and latency instrumentation.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vigil/internal/logging"
)

type contextKey string

// RequestIDKey is the context key under which the request ID travels.
const RequestIDKey contextKey = "request_id"

// slowRequestThreshold marks requests worth a warning on their own.
const slowRequestThreshold = time.Second

// RequestLogger tags every request with an X-Request-ID and logs method,
// path, status, and duration. Heartbeat and health probes are skipped to
// keep the log readable.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	log := logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			r = r.WithContext(ctx)
			w.Header().Set("X-Request-ID", requestID)

			if skipLogging(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			fields := []interface{}{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.statusCode,
				"duration_ms", float64(duration) / float64(time.Millisecond),
				"remote", r.RemoteAddr,
			}

			switch {
			case wrapper.statusCode >= http.StatusInternalServerError:
				log.Error("request failed", fields...)
			case wrapper.statusCode >= http.StatusBadRequest:
				log.Warn("request rejected", fields...)
			case duration > slowRequestThreshold:
				log.Warn("slow request", fields...)
			default:
				log.Debug("request served", fields...)
			}
		})
	}
}

func skipLogging(path string) bool {
	return path == "/ping" || path == "/health"
}

// responseWriter captures the status code for logging and instrumentation.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// GetRequestID extracts the request ID from a request context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
