package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/config"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

type fakeSLASource struct {
	history []types.SLACompliance
}

func (f *fakeSLASource) GetComplianceHistory() []types.SLACompliance {
	return f.history
}

type fakeCostSource struct {
	agg types.CostAggregate
}

func (f *fakeCostSource) GetCostMetrics(windowMonths int) types.CostAggregate {
	agg := f.agg
	agg.WindowMonths = windowMonths
	return agg
}

func newTestEngine() *Engine {
	cfg := config.DefaultConfig()
	return NewEngine(&cfg.Monitoring, ids.NewSequentialGenerator("dash"), logging.NewNoOpLogger())
}

func sampleLayout(name string) types.DashboardLayout {
	return types.DashboardLayout{
		Name:        name,
		Description: "test dashboard",
		Columns:     4,
	}
}

func TestEngine_CreateDashboard(t *testing.T) {
	e := newTestEngine()

	layout := sampleLayout("Service Health")
	layout.ID = "caller-supplied" // must be replaced

	id := e.CreateDashboard(layout)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "caller-supplied", id)

	got, ok := e.GetDashboard(id)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Service Health", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestEngine_UpdateDashboard(t *testing.T) {
	e := newTestEngine()
	id := e.CreateDashboard(sampleLayout("before"))

	created, _ := e.GetDashboard(id)
	time.Sleep(5 * time.Millisecond)

	updated := sampleLayout("after")
	updated.ID = "ignored"
	require.True(t, e.UpdateDashboard(id, updated))

	got, ok := e.GetDashboard(id)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "after", got.Name)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt))

	assert.False(t, e.UpdateDashboard("missing", sampleLayout("x")))
}

func TestEngine_DeleteDashboard(t *testing.T) {
	e := newTestEngine()
	id := e.CreateDashboard(sampleLayout("doomed"))
	keep := e.CreateDashboard(sampleLayout("kept"))

	require.True(t, e.DeleteDashboard(id))
	_, ok := e.GetDashboard(id)
	assert.False(t, ok)

	_, ok = e.GetDashboard(keep)
	assert.True(t, ok)

	assert.False(t, e.DeleteDashboard(id))
	assert.False(t, e.DeleteDashboard("missing"))
}

func TestEngine_GetDashboardUnknown(t *testing.T) {
	e := newTestEngine()

	got, ok := e.GetDashboard("missing")
	assert.False(t, ok)
	assert.Empty(t, got.ID)
}

func TestEngine_ListDashboardsIsolation(t *testing.T) {
	e := newTestEngine()
	first := e.CreateDashboard(sampleLayout("first"))
	second := e.CreateDashboard(sampleLayout("second"))
	_, ok := e.AddWidget(first, types.DashboardWidget{Name: "w", Type: types.WidgetTypeChart})
	require.True(t, ok)

	list := e.ListDashboards()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)

	// Mutating the returned widgets must not touch stored state.
	list[0].Widgets[0].Name = "tampered"
	got, _ := e.GetDashboard(first)
	assert.Equal(t, "w", got.Widgets[0].Name)
}

func TestEngine_AddWidget(t *testing.T) {
	e := newTestEngine()
	id := e.CreateDashboard(sampleLayout("host"))

	t.Run("generates widget id when absent", func(t *testing.T) {
		wid, ok := e.AddWidget(id, types.DashboardWidget{
			Name:        "CPU",
			Type:        types.WidgetTypeChart,
			MetricNames: []string{"cpu_usage"},
		})
		require.True(t, ok)
		assert.NotEmpty(t, wid)
	})

	t.Run("keeps provided widget id", func(t *testing.T) {
		wid, ok := e.AddWidget(id, types.DashboardWidget{ID: "w-custom", Name: "Mem", Type: types.WidgetTypeMetric})
		require.True(t, ok)
		assert.Equal(t, "w-custom", wid)
	})

	t.Run("unknown dashboard", func(t *testing.T) {
		wid, ok := e.AddWidget("missing", types.DashboardWidget{Name: "x", Type: types.WidgetTypeChart})
		assert.False(t, ok)
		assert.Empty(t, wid)
	})

	got, _ := e.GetDashboard(id)
	assert.Len(t, got.Widgets, 2)
}

func TestEngine_UpdateWidget(t *testing.T) {
	e := newTestEngine()
	id := e.CreateDashboard(sampleLayout("host"))
	wid, ok := e.AddWidget(id, types.DashboardWidget{Name: "old", Type: types.WidgetTypeChart})
	require.True(t, ok)

	require.True(t, e.UpdateWidget(id, wid, types.DashboardWidget{
		ID:   "ignored",
		Name: "new",
		Type: types.WidgetTypeTable,
	}))

	got, _ := e.GetDashboard(id)
	require.Len(t, got.Widgets, 1)
	assert.Equal(t, wid, got.Widgets[0].ID)
	assert.Equal(t, "new", got.Widgets[0].Name)
	assert.Equal(t, types.WidgetTypeTable, got.Widgets[0].Type)

	assert.False(t, e.UpdateWidget(id, "missing-widget", types.DashboardWidget{Name: "x"}))
	assert.False(t, e.UpdateWidget("missing-dashboard", wid, types.DashboardWidget{Name: "x"}))
}

func TestEngine_RemoveWidget(t *testing.T) {
	e := newTestEngine()
	id := e.CreateDashboard(sampleLayout("host"))
	wid, _ := e.AddWidget(id, types.DashboardWidget{Name: "w", Type: types.WidgetTypeChart})
	keep, _ := e.AddWidget(id, types.DashboardWidget{Name: "keep", Type: types.WidgetTypeMetric})

	require.True(t, e.RemoveWidget(id, wid))

	got, _ := e.GetDashboard(id)
	require.Len(t, got.Widgets, 1)
	assert.Equal(t, keep, got.Widgets[0].ID)

	assert.False(t, e.RemoveWidget(id, wid))
	assert.False(t, e.RemoveWidget("missing", keep))
}

func TestEngine_GetRealtimeSnapshot(t *testing.T) {
	e := newTestEngine()

	empty := e.GetRealtimeSnapshot()
	assert.Zero(t, empty.DashboardsCount)
	assert.NotNil(t, empty.Widgets)
	assert.Empty(t, empty.Widgets)

	first := e.CreateDashboard(sampleLayout("first"))
	second := e.CreateDashboard(sampleLayout("second"))
	e.AddWidget(first, types.DashboardWidget{Name: "CPU", Type: types.WidgetTypeChart, Enabled: true})
	e.AddWidget(first, types.DashboardWidget{Name: "Mem", Type: types.WidgetTypeMetric})
	e.AddWidget(second, types.DashboardWidget{Name: "Errors", Type: types.WidgetTypeTable, Enabled: true})

	snapshot := e.GetRealtimeSnapshot()
	assert.Equal(t, 2, snapshot.DashboardsCount)
	assert.False(t, snapshot.Timestamp.IsZero())
	require.Len(t, snapshot.Widgets, 3)

	assert.Equal(t, "CPU", snapshot.Widgets[0].Name)
	assert.Equal(t, types.WidgetTypeChart, snapshot.Widgets[0].Type)
	assert.True(t, snapshot.Widgets[0].Enabled)
	assert.False(t, snapshot.Widgets[1].Enabled)
	assert.Equal(t, "Errors", snapshot.Widgets[2].Name)
}

func TestEngine_TrendRecordingAndLookup(t *testing.T) {
	e := newTestEngine()

	// Zero timestamp is stamped on record.
	e.RecordTrendPoint(types.TrendPoint{MetricName: "cpu_usage", Value: 10})
	// Old point that must fall outside a 24h window.
	e.RecordTrendPoint(types.TrendPoint{
		MetricName: "cpu_usage",
		Value:      99,
		Timestamp:  time.Now().UTC().Add(-48 * time.Hour),
	})
	// Other metric never leaks into cpu_usage trends.
	e.RecordTrendPoint(types.TrendPoint{MetricName: "memory_usage", Value: 55})

	points := e.GetMetricTrend("cpu_usage", 24)
	require.Len(t, points, 1)
	assert.Equal(t, 10.0, points[0].Value)
	assert.False(t, points[0].Timestamp.IsZero())

	// A wide enough window includes the old point again.
	assert.Len(t, e.GetMetricTrend("cpu_usage", 72), 2)
	assert.Empty(t, e.GetMetricTrend("unknown", 24))
}

func TestEngine_TrendHistoryCap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Monitoring.TrendHistoryLimit = 5
	e := NewEngine(&cfg.Monitoring, ids.NewSequentialGenerator("dash"), logging.NewNoOpLogger())

	for i := 0; i < 8; i++ {
		e.RecordTrendPoint(types.TrendPoint{MetricName: "cpu_usage", Value: float64(i)})
	}

	points := e.GetMetricTrend("cpu_usage", 24)
	require.Len(t, points, 5)
	assert.Equal(t, 3.0, points[0].Value) // oldest three evicted
	assert.Equal(t, 7.0, points[4].Value)
}

func TestEngine_AnalyzeTrends(t *testing.T) {
	e := newTestEngine()

	for _, v := range []float64{10, 20, 30} {
		e.RecordTrendPoint(types.TrendPoint{MetricName: "rising", Value: v})
	}
	for i := 0; i < 4; i++ {
		e.RecordTrendPoint(types.TrendPoint{MetricName: "flat", Value: 50})
	}

	report := e.AnalyzeTrends([]string{"rising", "flat", "absent"}, 24)
	assert.Equal(t, 24, report.AnalysisPeriodHours)
	require.Len(t, report.Metrics, 2) // absent metric omitted

	rising := report.Metrics[0]
	assert.Equal(t, "rising", rising.MetricName)
	assert.InDelta(t, 20.0, rising.AvgValue, 1e-9)
	assert.Equal(t, 10.0, rising.MinValue)
	assert.Equal(t, 30.0, rising.MaxValue)
	assert.Equal(t, 3, rising.DataPoints)
	assert.Equal(t, types.TrendIncreasing, rising.Trend)

	// A perfectly flat series has max == avg and is labeled decreasing by
	// the heuristic.
	flat := report.Metrics[1]
	assert.Equal(t, types.TrendDecreasing, flat.Trend)
	assert.Equal(t, 4, flat.DataPoints)
}

func TestEngine_GetDashboardStatistics(t *testing.T) {
	e := newTestEngine()
	first := e.CreateDashboard(sampleLayout("first"))
	second := e.CreateDashboard(sampleLayout("second"))
	e.AddWidget(first, types.DashboardWidget{Name: "a", Type: types.WidgetTypeChart})
	e.AddWidget(second, types.DashboardWidget{Name: "b", Type: types.WidgetTypeChart})
	e.AddWidget(second, types.DashboardWidget{Name: "c", Type: types.WidgetTypeMetric})
	e.RecordTrendPoint(types.TrendPoint{MetricName: "cpu_usage", Value: 1})

	stats := e.GetDashboardStatistics()
	assert.Equal(t, 2, stats.DashboardsCount)
	assert.Equal(t, 3, stats.WidgetsCount)
	assert.Equal(t, 1, stats.TrendPoints)
	assert.False(t, stats.CalculatedAt.IsZero())
}

func TestEngine_GetSLADashboard(t *testing.T) {
	t.Run("no source bound", func(t *testing.T) {
		e := newTestEngine()
		dashboard := e.GetSLADashboard()
		assert.Zero(t, dashboard.TotalServices)
		assert.NotNil(t, dashboard.LatestByService)
		assert.False(t, dashboard.GeneratedAt.IsZero())
	})

	t.Run("latest check per service wins", func(t *testing.T) {
		e := newTestEngine()
		e.BindSLASource(&fakeSLASource{history: []types.SLACompliance{
			{ServiceName: "api", IsCompliant: false}, // superseded
			{ServiceName: "api", IsCompliant: true},
			{ServiceName: "worker", IsCompliant: false},
		}})

		dashboard := e.GetSLADashboard()
		assert.Equal(t, 2, dashboard.TotalServices)
		assert.Equal(t, 1, dashboard.CompliantServices)
		assert.InDelta(t, 50.0, dashboard.ComplianceRate, 1e-9)
		assert.True(t, dashboard.LatestByService["api"].IsCompliant)
		assert.False(t, dashboard.LatestByService["worker"].IsCompliant)
	})
}

func TestEngine_GetCostDashboard(t *testing.T) {
	t.Run("no source bound", func(t *testing.T) {
		e := newTestEngine()
		dashboard := e.GetCostDashboard()
		assert.Zero(t, dashboard.MonthlyCost)
		assert.Equal(t, types.TrendStable, dashboard.CostTrend)
	})

	t.Run("projects cost aggregate", func(t *testing.T) {
		e := newTestEngine()
		e.BindCostSource(&fakeCostSource{agg: types.CostAggregate{
			ComputeCostPerHour:  2,
			StorageCostPerMonth: 40,
			APICallCost:         100,
			TotalMonthlyCost:    1600,
		}})

		dashboard := e.GetCostDashboard()
		assert.Equal(t, 1600.0, dashboard.MonthlyCost)
		assert.InDelta(t, 1600.0/30, dashboard.DailyAverage, 1e-9)
		assert.Equal(t, 1600.0, dashboard.Breakdown.TotalMonthly)
		assert.Equal(t, 2.0, dashboard.Breakdown.ComputeCostPerHour)

		// No recorded cost trend points yet.
		assert.Equal(t, types.TrendStable, dashboard.CostTrend)
	})

	t.Run("trend label follows recorded series", func(t *testing.T) {
		e := newTestEngine()
		e.BindCostSource(&fakeCostSource{agg: types.CostAggregate{TotalMonthlyCost: 1000}})

		for _, v := range []float64{900, 950, 1000} {
			e.RecordTrendPoint(types.TrendPoint{MetricName: CostTrendMetric, Value: v})
		}
		assert.Equal(t, types.TrendIncreasing, e.GetCostDashboard().CostTrend)
	})
}

func TestDecodeWidgetConfig(t *testing.T) {
	t.Run("chart with defaults", func(t *testing.T) {
		cfg, err := DecodeWidgetConfig(types.DashboardWidget{Type: types.WidgetTypeChart})
		require.NoError(t, err)
		chart, ok := cfg.(ChartConfig)
		require.True(t, ok)
		assert.Equal(t, "line", chart.ChartKind)
		assert.Equal(t, 24, chart.TimeRangeHours)
	})

	t.Run("chart with overrides", func(t *testing.T) {
		cfg, err := DecodeWidgetConfig(types.DashboardWidget{
			Type: types.WidgetTypeChart,
			Configuration: map[string]any{
				"chart_kind":       "bar",
				"time_range_hours": 6,
				"stacked":          true,
			},
		})
		require.NoError(t, err)
		chart := cfg.(ChartConfig)
		assert.Equal(t, "bar", chart.ChartKind)
		assert.Equal(t, 6, chart.TimeRangeHours)
		assert.True(t, chart.Stacked)
	})

	t.Run("stat panel", func(t *testing.T) {
		cfg, err := DecodeWidgetConfig(types.DashboardWidget{
			Type:          types.WidgetTypeMetric,
			Configuration: map[string]any{"unit": "ms", "warn_above": 200.0},
		})
		require.NoError(t, err)
		stat := cfg.(StatConfig)
		assert.Equal(t, "ms", stat.Unit)
		assert.Equal(t, 2, stat.Precision)
		assert.Equal(t, 200.0, stat.WarnAbove)
	})

	t.Run("table panel", func(t *testing.T) {
		cfg, err := DecodeWidgetConfig(types.DashboardWidget{
			Type:          types.WidgetTypeTable,
			Configuration: map[string]any{"columns": []string{"service", "p99"}, "sort_by": "p99"},
		})
		require.NoError(t, err)
		table := cfg.(TableConfig)
		assert.Equal(t, []string{"service", "p99"}, table.Columns)
		assert.Equal(t, 20, table.PageSize)
	})

	t.Run("heatmap panel", func(t *testing.T) {
		cfg, err := DecodeWidgetConfig(types.DashboardWidget{
			Type:          types.WidgetTypeHeatmap,
			Configuration: map[string]any{"buckets": 30},
		})
		require.NoError(t, err)
		heatmap := cfg.(HeatmapConfig)
		assert.Equal(t, 30, heatmap.Buckets)
	})

	t.Run("unknown widget type", func(t *testing.T) {
		_, err := DecodeWidgetConfig(types.DashboardWidget{Type: "gauge"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown widget type")
	})

	t.Run("mismatched value types", func(t *testing.T) {
		_, err := DecodeWidgetConfig(types.DashboardWidget{
			Type:          types.WidgetTypeChart,
			Configuration: map[string]any{"time_range_hours": "six"},
		})
		require.Error(t, err)
	})
}
