package handlers

import (
	"context"
	"net/http"
	"time"

	"vigil/internal/api/response"
	"vigil/internal/storage"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports process liveness and snapshot store reachability.
type HealthHandler struct {
	store   storage.SnapshotStore
	version string
	started time.Time
}

// NewHealthHandler creates a health handler. The store may be nil when the
// server runs without persistence.
func NewHealthHandler(store storage.SnapshotStore, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
		started: time.Now().UTC(),
	}
}

type healthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Storage       string  `json:"storage"`
	Timestamp     string  `json:"timestamp"`
}

// Check reports overall health. Storage failures degrade the status and flip
// the response to 503 so load balancers stop routing here.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Storage:       "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.store.HealthCheck(ctx); err != nil {
			status.Status = "degraded"
			status.Storage = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	response.WriteJSON(w, code, status)
}
