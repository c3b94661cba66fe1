package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/anomaly"
	"vigil/internal/api/response"
	"vigil/pkg/types"
)

// AnomaliesHandler exposes anomaly detection and record management.
type AnomaliesHandler struct {
	detector *anomaly.Detector
}

// NewAnomaliesHandler creates an anomalies handler.
func NewAnomaliesHandler(detector *anomaly.Detector) *AnomaliesHandler {
	return &AnomaliesHandler{detector: detector}
}

// Detect scores one sample against its metric's recent window. A sample that
// is not anomalous reports detected=false with an empty anomaly_id.
func (h *AnomaliesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var point types.MetricPoint
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

	id := h.detector.DetectAnomaly(point)
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"detected":    id != "",
		"anomaly_id":  id,
		"metric_name": point.MetricName,
	})
}

// Recent returns the newest retained anomaly records.
func (h *AnomaliesHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)

	records := h.detector.GetRecentAnomalies(limit)
	if records == nil {
		records = []types.AnomalyRecord{}
	}
	response.WriteJSON(w, http.StatusOK, records)
}

// Confirm marks a detected anomaly as operator-confirmed.
func (h *AnomaliesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.detector.ConfirmAnomaly(id) {
		response.WriteNotFound(w, "anomaly", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"anomaly_id": id,
		"confirmed":  true,
	})
}
