package websocket

import (
	"time"

	"vigil/pkg/types"
)

// Event types pushed to subscribers.
const (
	EventConnected         = "connection"
	EventPong              = "pong"
	EventAlertCreated      = "alert_created"
	EventAlertAcknowledged = "alert_acknowledged"
	EventAlertResolved     = "alert_resolved"
	EventAnomalyDetected   = "anomaly_detected"
)

// AlertCreated broadcasts a newly raised alert.
func (h *Hub) AlertCreated(alert types.Alert) {
	h.broadcastAlert(EventAlertCreated, alert)
}

// AlertAcknowledged broadcasts an acknowledgement.
func (h *Hub) AlertAcknowledged(alert types.Alert) {
	h.broadcastAlert(EventAlertAcknowledged, alert)
}

// AlertResolved broadcasts a resolution.
func (h *Hub) AlertResolved(alert types.Alert) {
	h.broadcastAlert(EventAlertResolved, alert)
}

func (h *Hub) broadcastAlert(eventType string, alert types.Alert) {
	h.Broadcast(Event{
		Type:      eventType,
		Metrics:   alert.AffectedMetrics,
		Severity:  string(alert.Severity),
		Timestamp: time.Now().UTC(),
		Data:      alert,
	})
}

// AnomalyDetected broadcasts a statistical detection. Anomaly records carry
// no severity, so severity filters never suppress them.
func (h *Hub) AnomalyDetected(record types.AnomalyRecord) {
	h.Broadcast(Event{
		Type:      EventAnomalyDetected,
		Metrics:   []string{record.MetricName},
		Timestamp: time.Now().UTC(),
		Data:      record,
	})
}
