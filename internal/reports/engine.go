// Package reports generates metadata report snapshots from stored
// definitions, exports them to files, and dispatches scheduled deliveries.
package reports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"vigil/internal/config"
	"vigil/internal/errors"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/internal/retry"
	"vigil/pkg/types"
)

// Engine owns report definitions, the bounded history of generated reports,
// and the delivery queue.
type Engine struct {
	mu     sync.Mutex
	logger logging.Logger
	ids    ids.Generator
	md     goldmark.Markdown
	sender Sender

	exportDir    string
	historyLimit int
	retryCfg     *retry.Config

	definitions []types.ReportDefinition
	generated   []types.GeneratedReport
	deliveries  []types.ReportDelivery
}

// NewEngine creates a report engine. A nil sender falls back to the logging
// sender, which records deliveries without transporting them anywhere.
func NewEngine(cfg *config.ReportsConfig, gen ids.Generator, sender Sender, logger logging.Logger) *Engine {
	log := logger.WithComponent("reports")
	if sender == nil {
		sender = NewLogSender(log)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.DeliveryRetryLimit
	retryCfg.InitialDelay = time.Duration(cfg.DeliveryRetryDelayMs) * time.Millisecond

	return &Engine{
		logger:       log,
		ids:          gen,
		md:           goldmark.New(),
		sender:       sender,
		exportDir:    cfg.ExportDir,
		historyLimit: cfg.HistoryLimit,
		retryCfg:     retryCfg,
	}
}

// CreateReportDefinition stores a definition and returns its generated ID.
// Any ID on the incoming definition is replaced.
func (e *Engine) CreateReportDefinition(def types.ReportDefinition) string {
	def.ID = e.ids.NewID()

	e.mu.Lock()
	e.definitions = append(e.definitions, def)
	e.mu.Unlock()

	e.logger.Info("report definition created", "report_id", def.ID, "name", def.Name)
	return def.ID
}

// GetReportDefinitions returns the stored definitions in creation order.
func (e *Engine) GetReportDefinitions() []types.ReportDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()

	defs := make([]types.ReportDefinition, len(e.definitions))
	copy(defs, e.definitions)
	return defs
}

// GenerateReport produces a metadata snapshot for a definition: what the
// report covers and when it was generated, without re-running the underlying
// aggregations. The snapshot shares the definition's ID and is appended to
// the bounded report history. Unknown definitions return false.
func (e *Engine) GenerateReport(defID string) (types.GeneratedReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var def *types.ReportDefinition
	for i := range e.definitions {
		if e.definitions[i].ID == defID {
			def = &e.definitions[i]
			break
		}
	}
	if def == nil {
		return types.GeneratedReport{}, false
	}

	now := time.Now().UTC()
	report := types.GeneratedReport{
		ID:   defID,
		Name: def.Name,
		Type: def.Type,
		Data: map[string]any{
			"metrics_included": len(def.Metrics),
			"time_range_hours": def.TimeRangeHours,
			"generated_at":     now.Format(time.RFC3339),
		},
		Summary: types.ReportSummary{
			Type:           def.Type,
			MetricsCount:   len(def.Metrics),
			TimeRangeHours: def.TimeRangeHours,
			Success:        true,
		},
		TotalMetrics: len(def.Metrics),
		GeneratedAt:  now,
	}

	e.generated = append(e.generated, report)
	e.generated = types.TrimOldest(e.generated, e.historyLimit)
	return report, true
}

// GenerateCustomReport produces an ad hoc snapshot over the given metrics
// without a stored definition. Its ID carries a custom_ prefix.
func (e *Engine) GenerateCustomReport(metrics []string, hours int) types.GeneratedReport {
	now := time.Now().UTC()
	report := types.GeneratedReport{
		ID:   fmt.Sprintf("custom_%s", e.ids.NewID()),
		Name: "Custom Report",
		Type: types.ReportTypeCustom,
		Data: map[string]any{
			"metrics":      metrics,
			"hours":        hours,
			"generated_at": now.Format(time.RFC3339),
		},
		Summary: types.ReportSummary{
			Type:           types.ReportTypeCustom,
			MetricsCount:   len(metrics),
			TimeRangeHours: hours,
			Success:        true,
		},
		TotalMetrics: len(metrics),
		GeneratedAt:  now,
	}

	e.mu.Lock()
	e.generated = append(e.generated, report)
	e.generated = types.TrimOldest(e.generated, e.historyLimit)
	e.mu.Unlock()

	return report
}

// GetRecentReports returns generated reports newest first. Non-positive
// limits return the full retained history.
func (e *Engine) GetRecentReports(limit int) []types.GeneratedReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.generated)
	if limit > 0 && limit < n {
		n = limit
	}

	reports := make([]types.GeneratedReport, 0, n)
	for i := len(e.generated) - 1; i >= 0 && len(reports) < n; i-- {
		reports = append(reports, e.generated[i])
	}
	return reports
}

// ScheduleReport attaches a cron expression to a definition and enables it.
// Returns false for an unknown definition.
func (e *Engine) ScheduleReport(defID, cron string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.definitions {
		if e.definitions[i].ID == defID {
			e.definitions[i].Schedule = cron
			e.definitions[i].Enabled = true
			return true
		}
	}
	return false
}

// UnscheduleReport clears a definition's schedule, returning it to on-demand
// generation. Returns false for an unknown definition.
func (e *Engine) UnscheduleReport(defID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.definitions {
		if e.definitions[i].ID == defID {
			e.definitions[i].Schedule = ""
			e.definitions[i].Enabled = false
			return true
		}
	}
	return false
}

// ExportReport writes the newest generated report with the given ID to a
// file and returns the file path. An empty path resolves to the export
// directory with the format's extension. JSON and CSV exports render the
// report content; PDF and XLSX only resolve the target path, rendering for
// those formats is not implemented.
func (e *Engine) ExportReport(reportID string, format types.ExportFormat, path string) (string, error) {
	if !format.Valid() {
		return "", errors.NewValidationError("export_format", "unknown export format", string(format))
	}

	e.mu.Lock()
	var report *types.GeneratedReport
	for i := len(e.generated) - 1; i >= 0; i-- {
		if e.generated[i].ID == reportID {
			r := e.generated[i]
			report = &r
			break
		}
	}
	e.mu.Unlock()

	if report == nil {
		return "", errors.NewNotFoundError("report", reportID)
	}

	if path == "" {
		path = filepath.Join(e.exportDir, reportID+format.Extension())
	}

	switch format {
	case types.ExportFormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding report %s: %w", reportID, err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return "", fmt.Errorf("writing report export: %w", err)
		}

	case types.ExportFormatCSV:
		if err := writeReportCSV(path, report); err != nil {
			return "", fmt.Errorf("writing report export: %w", err)
		}
	}

	e.logger.Info("report exported", "report_id", reportID,
		"format", string(format), "path", path)
	return path, nil
}

func writeReportCSV(path string, report *types.GeneratedReport) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{
		{"report_id", "report_name", "report_type", "total_metrics", "time_range_hours", "generated_at"},
		{
			report.ID,
			report.Name,
			string(report.Type),
			strconv.Itoa(report.TotalMetrics),
			strconv.Itoa(report.Summary.TimeRangeHours),
			report.GeneratedAt.Format(time.RFC3339),
		},
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}
