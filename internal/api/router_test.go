package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/alerting"
	"vigil/internal/anomaly"
	"vigil/internal/config"
	"vigil/internal/dashboard"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/performance"
	"vigil/internal/ratelimit"
	"vigil/internal/reports"
	"vigil/internal/sla"
	"vigil/pkg/types"
)

// newTestRouter wires the full subsystem graph against in-memory state.
// mutate can adjust the config or deps before the router is built.
func newTestRouter(t *testing.T, mutate func(cfg *config.Config, deps *Deps)) *Router {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Reports.ExportDir = t.TempDir()
	logger := logging.NewNoOpLogger()

	collector := metrics.NewCollector(&cfg.Monitoring, logger)
	manager := alerting.NewManager(ids.NewSequentialGenerator("alert"), logger)
	detector := anomaly.NewDetector(&cfg.Monitoring, collector, manager,
		ids.NewSequentialGenerator("anomaly"), logger)
	thresholds := alerting.NewThresholdMonitor(manager, logger)
	correlation := alerting.NewCorrelationEngine(manager, logger)
	predictor := alerting.NewPredictor(collector, manager,
		ids.NewSequentialGenerator("prediction"), logger)
	tracker := sla.NewTracker(&cfg.Monitoring, collector, logger)
	dashboards := dashboard.NewEngine(&cfg.Monitoring, ids.NewSequentialGenerator("dash"), logger)
	dashboards.BindSLASource(tracker)
	dashboards.BindCostSource(collector)
	reportsEngine := reports.NewEngine(&cfg.Reports, ids.NewSequentialGenerator("report"), nil, logger)
	monitor := performance.NewMonitor(&cfg.Monitoring, ids.NewSequentialGenerator("perf"),
		prometheus.NewRegistry(), logger)

	deps := Deps{
		Config:      cfg,
		Logger:      logger,
		Collector:   collector,
		Detector:    detector,
		Alerts:      manager,
		Thresholds:  thresholds,
		Correlation: correlation,
		Predictor:   predictor,
		SLA:         tracker,
		Dashboards:  dashboards,
		Reports:     reportsEngine,
		Performance: monitor,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	return NewRouter(deps)
}

func doRequest(t *testing.T, router *Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.Handler().ServeHTTP(w, req)
	return w
}

// decodeData unwraps the success envelope into dst.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestNewRouterDefaults(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.NotNil(t, router.Handler())
	assert.Equal(t, "dev", router.deps.Version)
}

func TestPingHeartbeat(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var status struct {
		Status  string `json:"status"`
		Storage string `json:"storage"`
		Version string `json:"version"`
	}
	decodeData(t, w, &status)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "ok", status.Storage)
	assert.Equal(t, "dev", status.Version)
}

// unhealthyStore fails its health check and is otherwise inert.
type unhealthyStore struct{}

func (s *unhealthyStore) Initialize(context.Context) error                  { return nil }
func (s *unhealthyStore) SaveAlerts(context.Context, []types.Alert) error   { return nil }
func (s *unhealthyStore) LoadAlerts(context.Context) ([]types.Alert, error) { return nil, nil }
func (s *unhealthyStore) SaveAnomalies(context.Context, []types.AnomalyRecord) error {
	return nil
}
func (s *unhealthyStore) LoadAnomalies(context.Context) ([]types.AnomalyRecord, error) {
	return nil, nil
}
func (s *unhealthyStore) SaveSLAHistory(context.Context, []types.SLACompliance) error {
	return nil
}
func (s *unhealthyStore) LoadSLAHistory(context.Context) ([]types.SLACompliance, error) {
	return nil, nil
}
func (s *unhealthyStore) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}
func (s *unhealthyStore) Close() error { return nil }

func TestHealthEndpointDegradedWhenStorageDown(t *testing.T) {
	router := newTestRouter(t, func(_ *config.Config, deps *Deps) {
		deps.Store = &unhealthyStore{}
	})

	w := doRequest(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status struct {
		Status  string `json:"status"`
		Storage string `json:"storage"`
	}
	decodeData(t, w, &status)
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Storage, "connection refused")
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodGet, "/nonexistent", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), "not found")
}

func TestPrometheusEndpointMountedWithRegistry(t *testing.T) {
	router := newTestRouter(t, func(_ *config.Config, deps *Deps) {
		deps.Registry = prometheus.NewRegistry()
	})

	w := doRequest(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Without a registry the route does not exist.
	bare := newTestRouter(t, nil)
	w = doRequest(t, bare, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricIngestAndHistory(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/metrics", map[string]interface{}{
		"metric_name": "api.latency",
		"value":       123.4,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/metrics/api.latency/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var history []types.MetricPoint
	decodeData(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "api.latency", history[0].MetricName)
	assert.InDelta(t, 123.4, history[0].Value, 0.001)
}

func TestMetricIngestRequiresName(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/metrics", map[string]interface{}{
		"value": 1.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "metric_name")
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"title":            "Checkout latency climbing",
		"type":             "threshold_violation",
		"severity":         "warning",
		"affected_metrics": []string{"checkout.latency"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]string
	decodeData(t, w, &created)
	alertID := created["alert_id"]
	require.NotEmpty(t, alertID)

	// Acknowledging needs a user.
	w = doRequest(t, router, http.MethodPost, "/api/v1/alerts/"+alertID+"/acknowledge",
		map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/alerts/"+alertID+"/acknowledge",
		map[string]interface{}{"user": "oncall"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/alerts/"+alertID+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/alerts/"+alertID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var alert types.Alert
	decodeData(t, w, &alert)
	assert.True(t, alert.IsAcknowledged)
	assert.Equal(t, "oncall", alert.AcknowledgedBy)
	assert.NotNil(t, alert.ResolvedAt)

	w = doRequest(t, router, http.MethodGet, "/api/v1/alerts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThresholdRegisterAndCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/thresholds", map[string]interface{}{
		"metric_name":           "cpu.pct",
		"upper_bound":           90.0,
		"lower_bound":           0.0,
		"violation_window_size": 1,
		"severity":              "critical",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Inverted bounds are rejected with a validation error.
	w = doRequest(t, router, http.MethodPost, "/api/v1/thresholds", map[string]interface{}{
		"metric_name":           "mem.pct",
		"upper_bound":           10.0,
		"lower_bound":           20.0,
		"violation_window_size": 1,
		"severity":              "warning",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/thresholds/check", map[string]interface{}{
		"metric_name": "cpu.pct",
		"value":       97.5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var check struct {
		Violated bool   `json:"violated"`
		AlertID  string `json:"alert_id"`
	}
	decodeData(t, w, &check)
	assert.True(t, check.Violated)
	assert.NotEmpty(t, check.AlertID)
}

func TestSLARegistrationAndCompliance(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sla", map[string]interface{}{
		"service_name":               "checkout",
		"availability_target_pct":    99.9,
		"latency_p99_target_ms":      250.0,
		"error_rate_target_pct":      1.0,
		"measurement_window_minutes": 60,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/sla/checkout/compliance", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/sla/unregistered/compliance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/dashboards", map[string]interface{}{
		"dashboard_name": "Fleet overview",
		"columns":        3,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]string
	decodeData(t, w, &created)
	dashID := created["dashboard_id"]
	require.NotEmpty(t, dashID)

	w = doRequest(t, router, http.MethodPost, "/api/v1/dashboards/"+dashID+"/widgets",
		map[string]interface{}{
			"widget_name":  "CPU",
			"widget_type":  "line_chart",
			"metric_names": []string{"cpu.pct"},
		})
	require.Equal(t, http.StatusCreated, w.Code)

	var widget map[string]string
	decodeData(t, w, &widget)
	require.NotEmpty(t, widget["widget_id"])

	w = doRequest(t, router, http.MethodGet, "/api/v1/dashboards/"+dashID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var layout types.DashboardLayout
	decodeData(t, w, &layout)
	assert.Equal(t, "Fleet overview", layout.Name)
	assert.Len(t, layout.Widgets, 1)

	w = doRequest(t, router, http.MethodDelete, "/api/v1/dashboards/"+dashID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/dashboards/"+dashID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportDefinitionGenerateAndExport(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/reports/definitions", map[string]interface{}{
		"report_name":        "Weekly costs",
		"report_type":        "custom",
		"metrics_to_include": []string{"cost.total"},
		"time_range_hours":   168,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]string
	decodeData(t, w, &created)
	defID := created["definition_id"]
	require.NotEmpty(t, defID)

	w = doRequest(t, router, http.MethodPost, "/api/v1/reports/definitions/"+defID+"/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report types.GeneratedReport
	decodeData(t, w, &report)
	assert.Equal(t, defID, report.ID)

	w = doRequest(t, router, http.MethodPost, "/api/v1/reports/"+report.ID+"/export",
		map[string]interface{}{"format": "json"})
	require.Equal(t, http.StatusOK, w.Code)

	var exported map[string]string
	decodeData(t, w, &exported)
	assert.NotEmpty(t, exported["path"])

	// Unknown formats are rejected before touching the filesystem.
	w = doRequest(t, router, http.MethodPost, "/api/v1/reports/"+report.ID+"/export",
		map[string]interface{}{"format": "parquet"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitDeniesOverBudget(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	defer func() { _ = limiter.Close() }()

	router := newTestRouter(t, func(cfg *config.Config, deps *Deps) {
		cfg.Redis.RequestsPerMinute = 2
		deps.Limiter = limiter
	})

	for i := 0; i < 2; i++ {
		w := doRequest(t, router, http.MethodGet, "/api/v1/alerts", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(t, router, http.MethodGet, "/api/v1/alerts", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestIngestBudgetIndependentFromRequestBudget(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	defer func() { _ = limiter.Close() }()

	router := newTestRouter(t, func(cfg *config.Config, deps *Deps) {
		cfg.Redis.IngestPerMinute = 1
		cfg.Redis.RequestsPerMinute = 100
		deps.Limiter = limiter
	})

	body := map[string]interface{}{"metric_name": "api.latency", "value": 1.0}
	w := doRequest(t, router, http.MethodPost, "/api/v1/metrics", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/v1/metrics", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads still pass: the budgets do not share a window.
	w = doRequest(t, router, http.MethodGet, "/api/v1/alerts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPerformanceRoutesSkippedWithoutMonitor(t *testing.T) {
	router := newTestRouter(t, func(_ *config.Config, deps *Deps) {
		deps.Performance = nil
	})

	w := doRequest(t, router, http.MethodGet, "/api/v1/performance/statistics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPerformanceStatisticsAfterTraffic(t *testing.T) {
	router := newTestRouter(t, nil)

	// The instrumentation middleware records every request it sees.
	w := doRequest(t, router, http.MethodGet, "/api/v1/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/v1/performance/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]performance.Stats
	decodeData(t, w, &stats)
	assert.NotEmpty(t, stats)
}
