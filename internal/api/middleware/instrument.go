package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/performance"
)

// Instrument feeds every request into the performance monitor keyed by the
// chi route pattern, so "/api/v1/alerts/{id}" aggregates across IDs.
func Instrument(monitor *performance.Monitor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if monitor == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}

			monitor.TrackAPIRequest(endpoint, r.Method, wrapper.statusCode, time.Since(start))
		})
	}
}
