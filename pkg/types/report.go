package types

import (
	"fmt"
	"time"
)

// ReportType classifies a report definition's cadence and scope.
type ReportType string

const (
	ReportTypeDailySummary    ReportType = "daily_summary"
	ReportTypeWeeklyTrends    ReportType = "weekly_trends"
	ReportTypeMonthlyAnalysis ReportType = "monthly_analysis"
	ReportTypeCustom          ReportType = "custom"
)

// Valid returns true if the report type is known.
func (r ReportType) Valid() bool {
	switch r {
	case ReportTypeDailySummary, ReportTypeWeeklyTrends, ReportTypeMonthlyAnalysis, ReportTypeCustom:
		return true
	}
	return false
}

// ExportFormat names a report export target.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// Valid returns true if the export format is known.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatJSON, ExportFormatCSV, ExportFormatPDF, ExportFormatXLSX:
		return true
	}
	return false
}

// Extension returns the filename extension for the format, leading dot
// included.
func (f ExportFormat) Extension() string {
	return fmt.Sprintf(".%s", string(f))
}

// ReportDefinition names what a report covers and, optionally, when it runs.
// An empty schedule means on-demand only.
type ReportDefinition struct {
	ID             string     `json:"report_id"`
	Name           string     `json:"report_name"`
	Type           ReportType `json:"report_type"`
	Metrics        []string   `json:"metrics_to_include"`
	Dimensions     []string   `json:"dimensions,omitempty"`
	TimeRangeHours int        `json:"time_range_hours"`
	Schedule       string     `json:"schedule,omitempty"`
	Enabled        bool       `json:"is_enabled"`
}

// GeneratedReport is an immutable snapshot produced from a definition. It
// records metadata about what the report covers rather than re-running the
// underlying aggregation queries.
type GeneratedReport struct {
	ID           string         `json:"report_id"`
	Name         string         `json:"report_name"`
	Type         ReportType     `json:"report_type"`
	Data         map[string]any `json:"report_data,omitempty"`
	Summary      ReportSummary  `json:"summary"`
	TotalMetrics int            `json:"total_metrics"`
	TotalRecords int            `json:"total_records"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// ReportSummary is the headline block of a generated report.
type ReportSummary struct {
	Type           ReportType `json:"type"`
	MetricsCount   int        `json:"metrics_count"`
	TimeRangeHours int        `json:"time_range_hours"`
	Success        bool       `json:"success"`
}

// ReportDelivery associates a generated report with a recipient and format.
// Delivered flips once the sweep dispatches it; DeliveredAt stays nil while
// pending.
type ReportDelivery struct {
	ID           string       `json:"delivery_id"`
	ReportID     string       `json:"report_id"`
	Recipient    string       `json:"recipient_email"`
	Format       ExportFormat `json:"format"`
	Delivered    bool         `json:"delivered"`
	ScheduledFor time.Time    `json:"scheduled_for"`
	DeliveredAt  *time.Time   `json:"delivered_at,omitempty"`
}
