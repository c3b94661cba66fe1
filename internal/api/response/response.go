// Package response renders the JSON envelopes the HTTP API uses. Errors go
// through the StandardError vocabulary so every surface reports failures the
// same way.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "vigil/internal/errors"
)

// Success is the envelope for every 2xx payload.
type Success struct {
	Data      interface{} `json:"data"`
	Message   string      `json:"message,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// WriteJSON writes data inside the success envelope.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	envelope := Success{
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// WriteError renders err. StandardErrors keep their code and status; anything
// else is reported as an internal error without leaking its message.
func WriteError(w http.ResponseWriter, err error) {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		stdErr.WriteHTTPError(w)
		return
	}

	apperrors.NewInternalError("Internal server error occurred", err).WriteHTTPError(w)
}

// WriteNotFound reports a missing resource.
func WriteNotFound(w http.ResponseWriter, resource, id string) {
	apperrors.NewNotFoundError(resource, id).WriteHTTPError(w)
}

// WriteInvalidBody reports an unparseable or invalid request body.
func WriteInvalidBody(w http.ResponseWriter, err error) {
	apperrors.NewValidationError("body", "invalid JSON payload", err.Error()).WriteHTTPError(w)
}

// WriteRequiredField reports a missing request field.
func WriteRequiredField(w http.ResponseWriter, field string) {
	apperrors.NewRequiredFieldError(field).WriteHTTPError(w)
}
