package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"vigil/internal/logging"
	"vigil/internal/retry"
	"vigil/pkg/types"
)

// Sender transports a rendered report payload to a delivery recipient.
type Sender interface {
	Send(ctx context.Context, delivery types.ReportDelivery, payload []byte) error
}

// LogSender records deliveries in the log instead of transporting them.
// It is the default sender when no transport is configured.
type LogSender struct {
	logger logging.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the delivery and reports success.
func (s *LogSender) Send(_ context.Context, delivery types.ReportDelivery, payload []byte) error {
	s.logger.Info("report delivery dispatched",
		"delivery_id", delivery.ID,
		"report_id", delivery.ReportID,
		"recipient", delivery.Recipient,
		"format", string(delivery.Format),
		"payload_bytes", len(payload))
	return nil
}

// ScheduleDelivery queues a report for delivery to a recipient and returns
// the delivery ID. The record stays pending until a dispatch sweep sends it.
func (e *Engine) ScheduleDelivery(reportID, recipient string, format types.ExportFormat) string {
	delivery := types.ReportDelivery{
		ID:           e.ids.NewID(),
		ReportID:     reportID,
		Recipient:    recipient,
		Format:       format,
		Delivered:    false,
		ScheduledFor: time.Now().UTC(),
	}

	e.mu.Lock()
	e.deliveries = append(e.deliveries, delivery)
	e.mu.Unlock()

	e.logger.Info("report delivery scheduled", "delivery_id", delivery.ID,
		"report_id", reportID, "recipient", recipient)
	return delivery.ID
}

// GetScheduledDeliveries returns all delivery records, pending and completed.
func (e *Engine) GetScheduledDeliveries() []types.ReportDelivery {
	e.mu.Lock()
	defer e.mu.Unlock()

	deliveries := make([]types.ReportDelivery, len(e.deliveries))
	copy(deliveries, e.deliveries)
	return deliveries
}

// ExecutePendingDeliveries renders and sends every pending delivery,
// returning how many were delivered. Sends are retried per the configured
// delivery policy; a delivery whose report is missing or whose send
// ultimately fails stays pending for the next sweep.
func (e *Engine) ExecutePendingDeliveries(ctx context.Context) int {
	e.mu.Lock()
	pending := make([]types.ReportDelivery, 0)
	for _, d := range e.deliveries {
		if !d.Delivered {
			pending = append(pending, d)
		}
	}
	e.mu.Unlock()

	delivered := 0
	for _, delivery := range pending {
		report, ok := e.findReport(delivery.ReportID)
		if !ok {
			e.logger.Warn("delivery skipped, report not found",
				"delivery_id", delivery.ID, "report_id", delivery.ReportID)
			continue
		}

		payload, err := e.renderPayload(report)
		if err != nil {
			e.logger.Error("rendering delivery payload", "error", err, "delivery_id", delivery.ID)
			continue
		}

		err = retry.RetryWithConfig(ctx, e.retryCfg, func(ctx context.Context) error {
			return e.sender.Send(ctx, delivery, payload)
		})
		if err != nil {
			e.logger.Error("delivering report", "error", err,
				"delivery_id", delivery.ID, "recipient", delivery.Recipient)
			continue
		}

		e.markDelivered(delivery.ID)
		delivered++
	}
	return delivered
}

func (e *Engine) findReport(reportID string) (types.GeneratedReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := len(e.generated) - 1; i >= 0; i-- {
		if e.generated[i].ID == reportID {
			return e.generated[i], true
		}
	}
	return types.GeneratedReport{}, false
}

func (e *Engine) markDelivered(deliveryID string) {
	now := time.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.deliveries {
		if e.deliveries[i].ID == deliveryID {
			e.deliveries[i].Delivered = true
			e.deliveries[i].DeliveredAt = &now
			return
		}
	}
}

// renderPayload builds the delivery body: a markdown summary of the report
// converted to HTML.
func (e *Engine) renderPayload(report types.GeneratedReport) ([]byte, error) {
	var md bytes.Buffer
	fmt.Fprintf(&md, "# %s\n\n", report.Name)
	fmt.Fprintf(&md, "- **Type**: %s\n", report.Type)
	fmt.Fprintf(&md, "- **Generated**: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&md, "- **Metrics covered**: %d\n", report.TotalMetrics)
	fmt.Fprintf(&md, "- **Time range**: %dh\n", report.Summary.TimeRangeHours)

	var html bytes.Buffer
	if err := e.md.Convert(md.Bytes(), &html); err != nil {
		return nil, fmt.Errorf("converting report summary: %w", err)
	}
	return html.Bytes(), nil
}
