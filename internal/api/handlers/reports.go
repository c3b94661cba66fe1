package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/api/response"
	"vigil/internal/reports"
	"vigil/pkg/types"
)

// ReportsHandler exposes report definitions, generation, export, and
// delivery scheduling.
type ReportsHandler struct {
	engine *reports.Engine
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(engine *reports.Engine) *ReportsHandler {
	return &ReportsHandler{engine: engine}
}

// CreateDefinition stores a report definition and returns its generated ID.
func (h *ReportsHandler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var def types.ReportDefinition
	if err := decodeJSON(r, &def); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if def.Name == "" {
		response.WriteRequiredField(w, "report_name")
		return
	}

	id := h.engine.CreateReportDefinition(def)
	response.WriteJSON(w, http.StatusCreated, map[string]string{"definition_id": id})
}

// ListDefinitions returns every stored report definition.
func (h *ReportsHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.GetReportDefinitions())
}

// Generate runs a report from a stored definition.
func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, ok := h.engine.GenerateReport(id)
	if !ok {
		response.WriteNotFound(w, "report definition", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, report)
}

type customReportRequest struct {
	Metrics []string `json:"metrics"`
	Hours   int      `json:"hours"`
}

// GenerateCustom runs a one-off report over the requested metrics without
// storing a definition.
func (h *ReportsHandler) GenerateCustom(w http.ResponseWriter, r *http.Request) {
	var req customReportRequest
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

	response.WriteJSON(w, http.StatusOK, h.engine.GenerateCustomReport(req.Metrics, req.Hours))
}

// Recent returns the most recently generated reports, newest first.
func (h *ReportsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)

	recent := h.engine.GetRecentReports(limit)
	if recent == nil {
		recent = []types.GeneratedReport{}
	}
	response.WriteJSON(w, http.StatusOK, recent)
}

type scheduleRequest struct {
	Cron string `json:"cron"`
}

// Schedule attaches a cron expression to a report definition.
func (h *ReportsHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if req.Cron == "" {
		response.WriteRequiredField(w, "cron")
		return
	}

	if !h.engine.ScheduleReport(id, req.Cron) {
		response.WriteNotFound(w, "report definition", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"definition_id": id, "scheduled": true})
}

// Unschedule clears a report definition's cron schedule.
func (h *ReportsHandler) Unschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.engine.UnscheduleReport(id) {
		response.WriteNotFound(w, "report definition", id)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"definition_id": id, "scheduled": false})
}

type exportRequest struct {
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
}

// Export writes a generated report to disk and returns the file path.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if req.Format == "" {
		response.WriteRequiredField(w, "format")
		return
	}

	path, err := h.engine.ExportReport(id, types.ExportFormat(req.Format), req.Path)
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"report_id": id, "path": path})
}

type deliveryRequest struct {
	ReportID  string `json:"report_id"`
	Recipient string `json:"recipient_email"`
	Format    string `json:"format"`
}

// ScheduleDelivery queues a generated report for delivery to a recipient.
func (h *ReportsHandler) ScheduleDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}
	if req.ReportID == "" {
		response.WriteRequiredField(w, "report_id")
		return
	}
	if req.Recipient == "" {
		response.WriteRequiredField(w, "recipient_email")
		return
	}
	format := types.ExportFormat(req.Format)
	if req.Format == "" {
		format = types.ExportFormatJSON
	}

	id := h.engine.ScheduleDelivery(req.ReportID, req.Recipient, format)
	response.WriteJSON(w, http.StatusCreated, map[string]string{"delivery_id": id})
}

// ListDeliveries returns all delivery records, pending and completed.
func (h *ReportsHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.engine.GetScheduledDeliveries())
}

// Dispatch sends every pending delivery and reports how many went out.
func (h *ReportsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	delivered := h.engine.ExecutePendingDeliveries(r.Context())
	response.WriteJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}
