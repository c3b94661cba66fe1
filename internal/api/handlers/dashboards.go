package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/api/response"
	"vigil/internal/dashboard"
	"vigil/pkg/types"
)

// DashboardsHandler exposes dashboard and widget management plus the
// realtime, SLA, cost, and trend views.
type DashboardsHandler struct {
	engine *dashboard.Engine
}

// NewDashboardsHandler creates a dashboards handler.
func NewDashboardsHandler(engine *dashboard.Engine) *DashboardsHandler {
	return &DashboardsHandler{engine: engine}
}

// Create stores a dashboard layout and returns its generated ID.
func (h *DashboardsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var layout types.DashboardLayout
	if err := decodeJSON(r, &layout); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if layout.Name == "" {
		response.WriteRequiredField(w, "dashboard_name")
		return
	}

	id := h.engine.CreateDashboard(layout)
	response.WriteJSON(w, http.StatusCreated, map[string]string{"dashboard_id": id})
}

// List returns every stored dashboard.
func (h *DashboardsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.ListDashboards())
}

// Get returns one dashboard by ID.
func (h *DashboardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	layout, ok := h.engine.GetDashboard(id)
	if !ok {
		response.WriteNotFound(w, "dashboard", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, layout)
}

// Update replaces a dashboard's layout.
func (h *DashboardsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var layout types.DashboardLayout
	if err := decodeJSON(r, &layout); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}

	if !h.engine.UpdateDashboard(id, layout) {
		response.WriteNotFound(w, "dashboard", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dashboard_id": id,
		"updated":      true,
	})
}

// Delete removes a dashboard.
func (h *DashboardsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.engine.DeleteDashboard(id) {
		response.WriteNotFound(w, "dashboard", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dashboard_id": id,
		"deleted":      true,
	})
}

// AddWidget appends a widget to a dashboard and returns its generated ID.
func (h *DashboardsHandler) AddWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var widget types.DashboardWidget
	if err := decodeJSON(r, &widget); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}

	widgetID, ok := h.engine.AddWidget(id, widget)
	if !ok {
		response.WriteNotFound(w, "dashboard", id)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]string{
		"dashboard_id": id,
		"widget_id":    widgetID,
	})
}

// UpdateWidget replaces one widget in place.
func (h *DashboardsHandler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	widgetID := chi.URLParam(r, "widgetID")

	var widget types.DashboardWidget
	if err := decodeJSON(r, &widget); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}

	if !h.engine.UpdateWidget(id, widgetID, widget) {
		response.WriteNotFound(w, "widget", widgetID)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"widget_id": widgetID,
		"updated":   true,
	})
}

// RemoveWidget deletes one widget.
func (h *DashboardsHandler) RemoveWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	widgetID := chi.URLParam(r, "widgetID")

	if !h.engine.RemoveWidget(id, widgetID) {
		response.WriteNotFound(w, "widget", widgetID)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"widget_id": widgetID,
		"deleted":   true,
	})
}

// Snapshot returns the flat widget summary across all dashboards.
func (h *DashboardsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.GetRealtimeSnapshot())
}

// Statistics reports dashboard and widget counts.
func (h *DashboardsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.GetDashboardStatistics())
}

// SLADashboard returns the compliance view.
func (h *DashboardsHandler) SLADashboard(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.GetSLADashboard())
}

// CostDashboard returns the spend view.
func (h *DashboardsHandler) CostDashboard(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.GetCostDashboard())
}

// RecordTrend appends a trend sample.
func (h *DashboardsHandler) RecordTrend(w http.ResponseWriter, r *http.Request) {
	var point types.TrendPoint
	if err := decodeJSON(r, &point); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if point.MetricName == "" {
		response.WriteRequiredField(w, "metric_name")
		return
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	h.engine.RecordTrendPoint(point)
	response.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// Trend returns the trend history for one metric inside a trailing window.
func (h *DashboardsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	hours := queryInt(r, "hours", 24)

	points := h.engine.GetMetricTrend(name, hours)
	if points == nil {
		points = []types.TrendPoint{}
	}
	response.WriteJSON(w, http.StatusOK, points)
}

// analyzeTrendsRequest names the metrics to analyze over a trailing window.
type analyzeTrendsRequest struct {
	Metrics []string `json:"metrics"`
	Hours   int      `json:"hours"`
}

// AnalyzeTrends labels each requested metric's direction.
func (h *DashboardsHandler) AnalyzeTrends(w http.ResponseWriter, r *http.Request) {
	var req analyzeTrendsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if len(req.Metrics) == 0 {
		response.WriteRequiredField(w, "metrics")
		return
	}
	if req.Hours <= 0 {
		req.Hours = 24
	}

	response.WriteJSON(w, http.StatusOK, h.engine.AnalyzeTrends(req.Metrics, req.Hours))
}
