// Package dashboard manages dashboard layouts and widgets, keeps the metric
// trend history, and composes the SLA and cost overview panels.
package dashboard

import (
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// CostTrendMetric is the trend-history series the cost dashboard derives its
// trend label from. The wiring layer records the projected monthly cost under
// this name on a schedule.
const CostTrendMetric = "monthly_cost"

// SLASource supplies the compliance data behind the SLA dashboard.
// *sla.Tracker satisfies it.
type SLASource interface {
	GetComplianceHistory() []types.SLACompliance
}

// CostSource supplies the cost aggregate behind the cost dashboard.
// *metrics.Collector satisfies it.
type CostSource interface {
	GetCostMetrics(windowMonths int) types.CostAggregate
}

// Engine owns dashboard layouts and the trend history. SLA and cost sources
// are optional collaborators; without them the composite views are empty.
type Engine struct {
	mu     sync.Mutex
	logger logging.Logger
	ids    ids.Generator

	trendLimit int
	dashboards []types.DashboardLayout
	trends     []types.TrendPoint

	sla   SLASource
	costs CostSource
}

// NewEngine creates a dashboard engine.
func NewEngine(cfg *config.MonitoringConfig, gen ids.Generator, logger logging.Logger) *Engine {
	return &Engine{
		logger:     logger.WithComponent("dashboard"),
		ids:        gen,
		trendLimit: cfg.TrendHistoryLimit,
	}
}

// BindSLASource attaches the compliance source behind GetSLADashboard.
func (e *Engine) BindSLASource(source SLASource) {
	e.sla = source
}

// BindCostSource attaches the cost source behind GetCostDashboard.
func (e *Engine) BindCostSource(source CostSource) {
	e.costs = source
}

// CreateDashboard stores a new dashboard layout and returns its generated
// ID. Any ID on the incoming layout is replaced.
func (e *Engine) CreateDashboard(layout types.DashboardLayout) string {
	now := time.Now().UTC()
	layout.ID = e.ids.NewID()
	layout.CreatedAt = now
	layout.UpdatedAt = now

	e.mu.Lock()
	e.dashboards = append(e.dashboards, layout)
	e.mu.Unlock()

	e.logger.Info("dashboard created", "dashboard_id", layout.ID, "name", layout.Name)
	return layout.ID
}

// UpdateDashboard replaces a dashboard's layout wholesale, keeping its ID
// and creation time. Returns false for an unknown ID.
func (e *Engine) UpdateDashboard(id string, layout types.DashboardLayout) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.findLocked(id)
	if i < 0 {
		return false
	}

	layout.ID = id
	layout.CreatedAt = e.dashboards[i].CreatedAt
	layout.UpdatedAt = time.Now().UTC()
	e.dashboards[i] = layout
	return true
}

// DeleteDashboard removes a dashboard. Returns false for an unknown ID.
func (e *Engine) DeleteDashboard(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.findLocked(id)
	if i < 0 {
		return false
	}
	e.dashboards = append(e.dashboards[:i], e.dashboards[i+1:]...)
	return true
}

// GetDashboard looks up a dashboard by ID.
func (e *Engine) GetDashboard(id string) (types.DashboardLayout, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.findLocked(id)
	if i < 0 {
		return types.DashboardLayout{}, false
	}
	return copyLayout(e.dashboards[i]), true
}

// ListDashboards returns all dashboards in creation order.
func (e *Engine) ListDashboards() []types.DashboardLayout {
	e.mu.Lock()
	defer e.mu.Unlock()

	dashboards := make([]types.DashboardLayout, 0, len(e.dashboards))
	for _, d := range e.dashboards {
		dashboards = append(dashboards, copyLayout(d))
	}
	return dashboards
}

// AddWidget appends a widget to a dashboard. A widget arriving without an ID
// gets a generated one; the widget ID is returned either way. Returns false
// for an unknown dashboard.
func (e *Engine) AddWidget(dashboardID string, widget types.DashboardWidget) (string, bool) {
	if widget.ID == "" {
		widget.ID = e.ids.NewID()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.findLocked(dashboardID)
	if i < 0 {
		return "", false
	}
	e.dashboards[i].Widgets = append(e.dashboards[i].Widgets, widget)
	e.dashboards[i].UpdatedAt = time.Now().UTC()
	return widget.ID, true
}

// UpdateWidget replaces a widget in place, keeping its ID. Returns false if
// either the dashboard or the widget is unknown.
func (e *Engine) UpdateWidget(dashboardID, widgetID string, widget types.DashboardWidget) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.findLocked(dashboardID)
	if i < 0 {
		return false
	}
	for j := range e.dashboards[i].Widgets {
		if e.dashboards[i].Widgets[j].ID == widgetID {
			widget.ID = widgetID
			e.dashboards[i].Widgets[j] = widget
			e.dashboards[i].UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// RemoveWidget deletes a widget from a dashboard. Returns false if either
// the dashboard or the widget is unknown.
func (e *Engine) RemoveWidget(dashboardID, widgetID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.findLocked(dashboardID)
	if i < 0 {
		return false
	}
	widgets := e.dashboards[i].Widgets
	for j := range widgets {
		if widgets[j].ID == widgetID {
			e.dashboards[i].Widgets = append(widgets[:j], widgets[j+1:]...)
			e.dashboards[i].UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// GetRealtimeSnapshot flattens every widget across all dashboards into one
// summary. Widget metric queries are not evaluated here; rendering belongs
// to the consumer.
func (e *Engine) GetRealtimeSnapshot() types.RealtimeSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := types.RealtimeSnapshot{
		Timestamp:       time.Now().UTC(),
		DashboardsCount: len(e.dashboards),
		Widgets:         make([]types.WidgetSummary, 0),
	}
	for _, d := range e.dashboards {
		for _, w := range d.Widgets {
			snapshot.Widgets = append(snapshot.Widgets, types.WidgetSummary{
				WidgetID: w.ID,
				Name:     w.Name,
				Type:     w.Type,
				Enabled:  w.Enabled,
			})
		}
	}
	return snapshot
}

// RecordTrendPoint appends a sample to the bounded trend history. A zero
// timestamp is stamped with the current time.
func (e *Engine) RecordTrendPoint(point types.TrendPoint) {
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	e.mu.Lock()
	e.trends = append(e.trends, point)
	e.trends = types.TrimOldest(e.trends, e.trendLimit)
	e.mu.Unlock()
}

// GetMetricTrend returns the trend points for one metric no older than the
// given number of hours, oldest first.
func (e *Engine) GetMetricTrend(name string, hours int) []types.TrendPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trendLocked(name, hours)
}

func (e *Engine) trendLocked(name string, hours int) []types.TrendPoint {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	points := make([]types.TrendPoint, 0)
	for _, p := range e.trends {
		if p.MetricName == name && !p.Timestamp.Before(cutoff) {
			points = append(points, p)
		}
	}
	return points
}

// AnalyzeTrends computes avg/min/max per metric over its trend window and
// labels each series increasing when its maximum exceeds its own average,
// decreasing otherwise. Metrics without samples in the window are omitted.
func (e *Engine) AnalyzeTrends(names []string, hours int) types.TrendAnalysisReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := types.TrendAnalysisReport{
		AnalysisPeriodHours: hours,
		Metrics:             make([]types.TrendAnalysis, 0, len(names)),
	}

	for _, name := range names {
		points := e.trendLocked(name, hours)
		if len(points) == 0 {
			continue
		}

		analysis := types.TrendAnalysis{
			MetricName: name,
			MinValue:   points[0].Value,
			MaxValue:   points[0].Value,
			DataPoints: len(points),
		}
		sum := 0.0
		for _, p := range points {
			sum += p.Value
			if p.Value < analysis.MinValue {
				analysis.MinValue = p.Value
			}
			if p.Value > analysis.MaxValue {
				analysis.MaxValue = p.Value
			}
		}
		analysis.AvgValue = sum / float64(len(points))

		analysis.Trend = types.TrendDecreasing
		if analysis.MaxValue > analysis.AvgValue {
			analysis.Trend = types.TrendIncreasing
		}
		report.Metrics = append(report.Metrics, analysis)
	}
	return report
}

// GetDashboardStatistics counts the engine's inventory.
func (e *Engine) GetDashboardStatistics() types.DashboardStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := types.DashboardStatistics{
		DashboardsCount: len(e.dashboards),
		TrendPoints:     len(e.trends),
		CalculatedAt:    time.Now().UTC(),
	}
	for _, d := range e.dashboards {
		stats.WidgetsCount += len(d.Widgets)
	}
	return stats
}

// GetSLADashboard summarizes the latest compliance check per service. With
// no bound SLA source the view is empty.
func (e *Engine) GetSLADashboard() types.SLADashboard {
	dashboard := types.SLADashboard{
		LatestByService: make(map[string]types.SLACompliance),
		GeneratedAt:     time.Now().UTC(),
	}
	if e.sla == nil {
		return dashboard
	}

	for _, check := range e.sla.GetComplianceHistory() {
		dashboard.LatestByService[check.ServiceName] = check
	}

	dashboard.TotalServices = len(dashboard.LatestByService)
	for _, check := range dashboard.LatestByService {
		if check.IsCompliant {
			dashboard.CompliantServices++
		}
	}
	if dashboard.TotalServices > 0 {
		dashboard.ComplianceRate = float64(dashboard.CompliantServices) /
			float64(dashboard.TotalServices) * 100
	}
	return dashboard
}

// GetCostDashboard projects the retained cost snapshots into the overview
// panel. The trend label follows the CostTrendMetric series when one has
// been recorded and reads stable otherwise. With no bound cost source the
// view is empty.
func (e *Engine) GetCostDashboard() types.CostDashboard {
	dashboard := types.CostDashboard{
		CostTrend:   types.TrendStable,
		GeneratedAt: time.Now().UTC(),
	}
	if e.costs == nil {
		return dashboard
	}

	agg := e.costs.GetCostMetrics(1)
	dashboard.MonthlyCost = agg.TotalMonthlyCost
	dashboard.DailyAverage = agg.TotalMonthlyCost / 30
	dashboard.Breakdown = types.CostBreakdown{
		ComputeCostPerHour:  agg.ComputeCostPerHour,
		StorageCostPerMonth: agg.StorageCostPerMonth,
		APICallCost:         agg.APICallCost,
		TotalMonthly:        agg.TotalMonthlyCost,
	}

	e.mu.Lock()
	points := e.trendLocked(CostTrendMetric, 24)
	e.mu.Unlock()

	if len(points) > 0 {
		sum, max := 0.0, points[0].Value
		for _, p := range points {
			sum += p.Value
			if p.Value > max {
				max = p.Value
			}
		}
		dashboard.CostTrend = types.TrendDecreasing
		if max > sum/float64(len(points)) {
			dashboard.CostTrend = types.TrendIncreasing
		}
	}
	return dashboard
}

func (e *Engine) findLocked(id string) int {
	for i := range e.dashboards {
		if e.dashboards[i].ID == id {
			return i
		}
	}
	return -1
}

// copyLayout clones a layout with its own widgets slice so callers cannot
// mutate stored state through the returned value.
func copyLayout(d types.DashboardLayout) types.DashboardLayout {
	out := d
	out.Widgets = make([]types.DashboardWidget, len(d.Widgets))
	copy(out.Widgets, d.Widgets)
	return out
}
