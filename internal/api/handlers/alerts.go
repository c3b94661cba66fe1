package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/alerting"
	"vigil/internal/api/response"
	"vigil/pkg/types"
)

// AlertsHandler exposes the alert lifecycle plus correlation and prediction
// views.
type AlertsHandler struct {
	manager     *alerting.Manager
	correlation *alerting.CorrelationEngine
	predictor   *alerting.Predictor
}

// NewAlertsHandler creates an alerts handler.
func NewAlertsHandler(manager *alerting.Manager, correlation *alerting.CorrelationEngine, predictor *alerting.Predictor) *AlertsHandler {
	return &AlertsHandler{
		manager:     manager,
		correlation: correlation,
		predictor:   predictor,
	}
}

// Create appends an alert and returns its generated ID.
func (h *AlertsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var alert types.Alert
	if err := decodeJSON(r, &alert); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if alert.Title == "" {
		response.WriteRequiredField(w, "title")
		return
	}

	id := h.manager.CreateAlert(alert)
	response.WriteJSON(w, http.StatusCreated, map[string]string{"alert_id": id})
}

// List returns alerts, optionally only the unresolved ones.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	var alerts []types.Alert
	if r.URL.Query().Get("active") == "true" {
		alerts = h.manager.GetActiveAlerts()
	} else {
		alerts = h.manager.GetAllAlerts()
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}
	response.WriteJSON(w, http.StatusOK, alerts)
}

// Get returns one alert by ID.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, ok := h.manager.GetAlert(id)
	if !ok {
		response.WriteNotFound(w, "alert", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, alert)
}

// acknowledgeRequest names the operator taking ownership of an alert.
type acknowledgeRequest struct {
	User string `json:"user"`
}

// Acknowledge marks an alert as owned by an operator.
func (h *AlertsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req acknowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if req.User == "" {
		response.WriteRequiredField(w, "user")
		return
	}

	if !h.manager.AcknowledgeAlert(id, req.User) {
		response.WriteNotFound(w, "alert", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":     id,
		"acknowledged": true,
	})
}

// Resolve closes an alert.
func (h *AlertsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.manager.ResolveAlert(id) {
		response.WriteNotFound(w, "alert", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id": id,
		"resolved": true,
	})
}

// Statistics summarizes alert volume over a trailing period.
func (h *AlertsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	response.WriteJSON(w, http.StatusOK, h.manager.GetAlertStatistics(days))
}

// Correlated lists the alerts correlated with one alert.
func (h *AlertsHandler) Correlated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.manager.GetAlert(id); !ok {
		response.WriteNotFound(w, "alert", id)
		return
	}

	correlated := h.correlation.CorrelateAlerts(id)
	if correlated == nil {
		correlated = []string{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":   id,
		"correlated": correlated,
	})
}

// Groups partitions active alerts into root-cause clusters.
func (h *AlertsHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups := h.correlation.GroupAlertsByRootCause()
	if groups == nil {
		groups = [][]string{}
	}
	response.WriteJSON(w, http.StatusOK, groups)
}

// CorrelationGraph returns the adjacency list over active alerts.
func (h *AlertsHandler) CorrelationGraph(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.correlation.GetAlertCorrelationGraph())
}

// Predictions lists alert predictions across all metrics with enough
// history.
func (h *AlertsHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	predictions := h.predictor.GetAlertPredictions()
	if predictions == nil {
		predictions = []types.AlertPrediction{}
	}
	response.WriteJSON(w, http.StatusOK, predictions)
}

// PredictMetric forecasts a violation for one metric. Metrics without
// enough history report 404.
func (h *AlertsHandler) PredictMetric(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")

	prediction, ok := h.predictor.PredictAlert(metric)
	if !ok {
		response.WriteNotFound(w, "prediction", metric)
		return
	}
	response.WriteJSON(w, http.StatusOK, prediction)
}
