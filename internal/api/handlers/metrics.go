package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/api/response"
	"vigil/internal/metrics"
	"vigil/pkg/types"
)

// MetricsHandler exposes metric ingestion, history, aggregates, and
// recommendations.
type MetricsHandler struct {
	collector *metrics.Collector
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(collector *metrics.Collector) *MetricsHandler {
	return &MetricsHandler{collector: collector}
}

// Ingest accepts one raw metric point. Points without a timestamp are
// stamped on arrival.
func (h *MetricsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
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

	h.collector.AddMetric(point)
	response.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted":    true,
		"metric_name": point.MetricName,
	})
}

// History returns the retained samples for one metric in insertion order.
func (h *MetricsHandler) History(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := queryInt(r, "limit", 0)

	points := h.collector.GetMetricHistory(name, limit)
	if points == nil {
		points = []types.MetricPoint{}
	}
	response.WriteJSON(w, http.StatusOK, points)
}

// RecordBusiness accepts a business snapshot.
func (h *MetricsHandler) RecordBusiness(w http.ResponseWriter, r *http.Request) {
	var snapshot types.BusinessSnapshot
	if err := decodeJSON(r, &snapshot); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	h.collector.RecordBusinessMetrics(snapshot)
	response.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// RecordTechnical accepts a technical snapshot.
func (h *MetricsHandler) RecordTechnical(w http.ResponseWriter, r *http.Request) {
	var snapshot types.TechnicalSnapshot
	if err := decodeJSON(r, &snapshot); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	h.collector.RecordTechnicalMetrics(snapshot)
	response.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// RecordCost accepts a cost snapshot.
func (h *MetricsHandler) RecordCost(w http.ResponseWriter, r *http.Request) {
	var snapshot types.CostSnapshot
	if err := decodeJSON(r, &snapshot); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	h.collector.RecordCostMetrics(snapshot)
	response.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// BusinessAggregate summarizes the retained business snapshots.
func (h *MetricsHandler) BusinessAggregate(w http.ResponseWriter, r *http.Request) {
	minutes := queryInt(r, "minutes", 60)
	response.WriteJSON(w, http.StatusOK, h.collector.GetBusinessMetrics(minutes))
}

// TechnicalAggregate summarizes the retained technical snapshots.
func (h *MetricsHandler) TechnicalAggregate(w http.ResponseWriter, r *http.Request) {
	minutes := queryInt(r, "minutes", 60)
	response.WriteJSON(w, http.StatusOK, h.collector.GetTechnicalMetrics(minutes))
}

// CostAggregate summarizes the retained cost snapshots.
func (h *MetricsHandler) CostAggregate(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 1)
	response.WriteJSON(w, http.StatusOK, h.collector.GetCostMetrics(months))
}

// Statistics reports buffer occupancy and anomaly counts.
func (h *MetricsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.collector.GetMetricsStatistics())
}

// CostRecommendations lists cost optimization recommendations.
func (h *MetricsHandler) CostRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := h.collector.GetCostOptimizationRecommendations()
	if recs == nil {
		recs = []types.Recommendation{}
	}
	response.WriteJSON(w, http.StatusOK, recs)
}

// PerformanceRecommendations lists performance recommendations.
func (h *MetricsHandler) PerformanceRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := h.collector.GetPerformanceRecommendations()
	if recs == nil {
		recs = []types.Recommendation{}
	}
	response.WriteJSON(w, http.StatusOK, recs)
}
