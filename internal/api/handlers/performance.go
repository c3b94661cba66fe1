package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/api/response"
	"vigil/internal/performance"
	"vigil/pkg/types"
)

// PerformanceHandler exposes operation latency statistics, slow query
// inspection, baselines, and regression detection.
type PerformanceHandler struct {
	monitor *performance.Monitor
}

// NewPerformanceHandler creates a performance handler.
func NewPerformanceHandler(monitor *performance.Monitor) *PerformanceHandler {
	return &PerformanceHandler{monitor: monitor}
}

// AllStats returns latency statistics for every tracked operation.
func (h *PerformanceHandler) AllStats(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.monitor.GetAllStatistics())
}

// OpStats returns latency statistics for one operation.
func (h *PerformanceHandler) OpStats(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	stats, ok := h.monitor.GetStatistics(operation)
	if !ok {
		response.WriteNotFound(w, "operation", operation)
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}

// SlowQueries returns the slowest recorded queries, slowest first.
func (h *PerformanceHandler) SlowQueries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)

	slow := h.monitor.GetSlowQueries(limit)
	if slow == nil {
		slow = []performance.SlowQuery{}
	}
	response.WriteJSON(w, http.StatusOK, slow)
}

type baselineRequest struct {
	Operation string `json:"operation"`
}

// SetBaseline snapshots current statistics as the regression baseline for
// one operation, or for all tracked operations when none is named.
func (h *PerformanceHandler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}

	if !h.monitor.SetBaseline(req.Operation) {
		if req.Operation == "" {
			response.WriteNotFound(w, "operation", "*")
			return
		}
		response.WriteNotFound(w, "operation", req.Operation)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"operation": req.Operation, "baseline_set": true})
}

// Regressions compares current statistics against baselines and returns
// operations that slowed past the threshold percentage.
func (h *PerformanceHandler) Regressions(w http.ResponseWriter, r *http.Request) {
	thresholdPct := queryFloat(r, "threshold_pct", 20)

	regressions := h.monitor.DetectRegressions(thresholdPct)
	if regressions == nil {
		regressions = []performance.Regression{}
	}
	response.WriteJSON(w, http.StatusOK, regressions)
}

// Alerts returns alert drafts for operations currently regressing.
func (h *PerformanceHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.monitor.GetPerformanceAlerts()
	if alerts == nil {
		alerts = []types.Alert{}
	}
	response.WriteJSON(w, http.StatusOK, alerts)
}
