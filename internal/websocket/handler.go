package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"vigil/internal/ids"
	"vigil/internal/logging"
)

// Handler upgrades HTTP requests and attaches the resulting connections to
// the hub. The metric and severity query parameters seed the client's
// filters; both can be changed later with subscribe messages.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	ids      ids.Generator
	logger   logging.Logger
}

// NewHandler creates the upgrade handler. A nil generator falls back to
// UUID client IDs.
func NewHandler(hub *Hub, gen ids.Generator, logger logging.Logger) *Handler {
	if gen == nil {
		gen = ids.NewUUIDGenerator()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The stream is read-only telemetry with no cookie auth, so
			// cross-origin subscribers are acceptable.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ids:    gen,
		logger: logger.WithComponent("websocket"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	query := r.URL.Query()
	client := newClient(h.ids.NewID(), conn, h.hub, query.Get("metric"), query.Get("severity"))

	h.logger.Info("websocket client connected",
		"client_id", client.id, "remote", r.RemoteAddr,
		"metric_filter", query.Get("metric"), "severity_filter", query.Get("severity"))

	h.hub.RegisterClient(client)
	go client.writePump()
	go client.readPump()
}
