package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/api/response"
	"vigil/internal/sla"
	"vigil/pkg/types"
)

// SLAHandler exposes SLA registration, compliance checks, and reporting.
type SLAHandler struct {
	tracker *sla.Tracker
}

// NewSLAHandler creates an SLA handler.
func NewSLAHandler(tracker *sla.Tracker) *SLAHandler {
	return &SLAHandler{tracker: tracker}
}

// Register adds or replaces a service's SLA definition.
func (h *SLAHandler) Register(w http.ResponseWriter, r *http.Request) {
	var def types.SLADefinition
	if err := decodeJSON(r, &def); err != nil {
		response.WriteInvalidBody(w, err)
		return
	}

	if err := h.tracker.RegisterSLA(def); err != nil {
		response.WriteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"service_name": def.ServiceName,
		"registered":   true,
	})
}

// List returns the registered definitions.
func (h *SLAHandler) List(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.tracker.GetSLADefinitions())
}

// Compliance runs a compliance check for one registered service.
func (h *SLAHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	if !h.registered(service) {
		response.WriteNotFound(w, "sla", service)
		return
	}
	response.WriteJSON(w, http.StatusOK, h.tracker.CheckSLACompliance(service))
}

// Report summarizes the compliance history.
func (h *SLAHandler) Report(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	response.WriteJSON(w, http.StatusOK, h.tracker.GetSLAReport(days))
}

// History returns the retained compliance checks, oldest first.
func (h *SLAHandler) History(w http.ResponseWriter, r *http.Request) {
	history := h.tracker.GetComplianceHistory()
	if history == nil {
		history = []types.SLACompliance{}
	}
	response.WriteJSON(w, http.StatusOK, history)
}

func (h *SLAHandler) registered(service string) bool {
	for _, def := range h.tracker.GetSLADefinitions() {
		if def.ServiceName == service {
			return true
		}
	}
	return false
}
