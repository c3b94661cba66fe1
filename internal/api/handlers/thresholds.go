package handlers

import (
	"net/http"

	"vigil/internal/alerting"
	"vigil/internal/api/response"
	"vigil/pkg/types"
)

// ThresholdsHandler exposes threshold registration and violation checks.
type ThresholdsHandler struct {
	monitor *alerting.ThresholdMonitor
}

// NewThresholdsHandler creates a thresholds handler.
func NewThresholdsHandler(monitor *alerting.ThresholdMonitor) *ThresholdsHandler {
	return &ThresholdsHandler{monitor: monitor}
}

// Register adds a threshold configuration.
func (h *ThresholdsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var cfg types.ThresholdConfig
	if err := decodeJSON(r, &cfg); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}

	if err := h.monitor.RegisterThreshold(cfg); err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"metric_name": cfg.MetricName,
		"registered":  true,
	})
}

// List returns the registered configurations.
func (h *ThresholdsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.monitor.GetThresholds())
}

// checkRequest is one sample to evaluate against the registered thresholds.
type checkRequest struct {
	MetricName string  `json:"metric_name"`
	Value      float64 `json:"value"`
}

// Check evaluates a sample. A violation that completes the debounce window
// reports the raised alert's ID.
func (h *ThresholdsHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if req.MetricName == "" {
		response.WriteRequiredField(w, "metric_name")
		return
	}

	alertID := h.monitor.CheckThresholdViolation(req.MetricName, req.Value)
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"metric_name": req.MetricName,
		"violated":    alertID != "",
		"alert_id":    alertID,
	})
}
