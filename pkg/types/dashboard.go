package types

import "time"

// WidgetType names the visualization a dashboard widget renders.
type WidgetType string

const (
	WidgetTypeChart   WidgetType = "chart"
	WidgetTypeMetric  WidgetType = "metric"
	WidgetTypeTable   WidgetType = "table"
	WidgetTypeHeatmap WidgetType = "heatmap"
)

// Valid returns true if the widget type is known.
func (w WidgetType) Valid() bool {
	switch w {
	case WidgetTypeChart, WidgetTypeMetric, WidgetTypeTable, WidgetTypeHeatmap:
		return true
	}
	return false
}

// DashboardWidget is one panel on a dashboard. Configuration holds the
// type-specific rendering options as a loose map; the dashboard engine can
// decode it into a typed config per widget type.
type DashboardWidget struct {
	ID                     string         `json:"widget_id"`
	Name                   string         `json:"widget_name"`
	Type                   WidgetType     `json:"widget_type"`
	Configuration          map[string]any `json:"configuration,omitempty"`
	MetricNames            []string       `json:"metric_names"`
	RefreshIntervalSeconds int            `json:"refresh_interval_seconds"`
	Enabled                bool           `json:"is_enabled"`
}

// DashboardLayout owns an ordered list of widgets plus grid configuration.
type DashboardLayout struct {
	ID           string            `json:"dashboard_id"`
	Name         string            `json:"dashboard_name"`
	Description  string            `json:"description,omitempty"`
	Widgets      []DashboardWidget `json:"widgets"`
	Columns      int               `json:"columns"`
	LayoutConfig map[string]any    `json:"layout_config,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// WidgetSummary is the flattened widget view inside a realtime snapshot.
type WidgetSummary struct {
	WidgetID string     `json:"widget_id"`
	Name     string     `json:"name"`
	Type     WidgetType `json:"type"`
	Enabled  bool       `json:"enabled"`
}

// RealtimeSnapshot is a flat summary of every widget across all dashboards.
// It does not evaluate the widgets' underlying metric queries; rendering is
// the consumer's job.
type RealtimeSnapshot struct {
	Timestamp       time.Time       `json:"timestamp"`
	DashboardsCount int             `json:"dashboards_count"`
	Widgets         []WidgetSummary `json:"widgets"`
}

// TrendPoint is one sample in the dashboard trend history.
type TrendPoint struct {
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// TrendAnalysis is the per-metric outcome of trend analysis. The trend label
// is a coarse heuristic: any metric whose maximum exceeds its own average is
// labeled increasing, everything else decreasing.
type TrendAnalysis struct {
	MetricName string  `json:"metric_name"`
	AvgValue   float64 `json:"avg_value"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	DataPoints int     `json:"data_points"`
	Trend      string  `json:"trend"`
}

// TrendAnalysisReport bundles per-metric trend analyses for one request.
// Metrics without any samples in the window are omitted.
type TrendAnalysisReport struct {
	AnalysisPeriodHours int             `json:"analysis_period_hours"`
	Metrics             []TrendAnalysis `json:"metrics"`
}

// DashboardStatistics counts the dashboard engine's inventory.
type DashboardStatistics struct {
	DashboardsCount int       `json:"dashboards_count"`
	WidgetsCount    int       `json:"widgets_count"`
	TrendPoints     int       `json:"trend_points"`
	CalculatedAt    time.Time `json:"calculated_at"`
}

// SLADashboard is the composite SLA view: report-level counters over the
// latest compliance check per service.
type SLADashboard struct {
	TotalServices     int                      `json:"total_services"`
	CompliantServices int                      `json:"compliant_services"`
	ComplianceRate    float64                  `json:"compliance_rate"`
	LatestByService   map[string]SLACompliance `json:"latest_by_service"`
	GeneratedAt       time.Time                `json:"generated_at"`
}

// CostDashboard is the composite cost view over the retained cost snapshots.
type CostDashboard struct {
	MonthlyCost  float64       `json:"monthly_cost"`
	DailyAverage float64       `json:"daily_average"`
	CostTrend    string        `json:"cost_trend"`
	Breakdown    CostBreakdown `json:"breakdown"`
	GeneratedAt  time.Time     `json:"generated_at"`
}
