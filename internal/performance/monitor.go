// Package performance tracks operation latencies across the server: ad hoc
// tracked operations, database queries with a slow-query log, and API
// requests. Per-operation statistics feed baseline capture and regression
// detection, and every recorded sample is exported through Prometheus
// collectors on the registry the monitor is built with.
package performance

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vigil/internal/config"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/pkg/types"
)

// MetricType classifies what kind of work a tracked operation performed.
type MetricType string

const (
	MetricDatabaseQuery    MetricType = "database_query"
	MetricAPIRequest       MetricType = "api_request"
	MetricCacheHit         MetricType = "cache_hit"
	MetricCacheMiss        MetricType = "cache_miss"
	MetricExternalAPICall  MetricType = "external_api_call"
	MetricBackgroundJob    MetricType = "background_job"
	MetricWebSocketMessage MetricType = "websocket_message"
)

// Level grades a latency.
type Level string

const (
	LevelExcellent  Level = "excellent"
	LevelGood       Level = "good"
	LevelAcceptable Level = "acceptable"
	LevelSlow       Level = "slow"
	LevelVerySlow   Level = "very_slow"
)

// LevelFor grades a duration: under 50ms is excellent, under 200ms good,
// under 500ms acceptable, up to 1s slow, and anything beyond very slow.
func LevelFor(d time.Duration) Level {
	ms := durationMs(d)
	switch {
	case ms < 50:
		return LevelExcellent
	case ms < 200:
		return LevelGood
	case ms < 500:
		return LevelAcceptable
	case ms <= 1000:
		return LevelSlow
	default:
		return LevelVerySlow
	}
}

// Stats summarizes one operation. Call counts, min, max, and the average
// cover the operation's lifetime; the percentiles are computed over the
// retained sample buffer.
type Stats struct {
	Operation       string     `json:"operation"`
	Type            MetricType `json:"type"`
	TotalCalls      int        `json:"total_calls"`
	SuccessfulCalls int        `json:"successful_calls"`
	FailedCalls     int        `json:"failed_calls"`
	AvgDurationMs   float64    `json:"avg_duration_ms"`
	MinDurationMs   float64    `json:"min_duration_ms"`
	MaxDurationMs   float64    `json:"max_duration_ms"`
	P50DurationMs   float64    `json:"p50_duration_ms"`
	P95DurationMs   float64    `json:"p95_duration_ms"`
	P99DurationMs   float64    `json:"p99_duration_ms"`
	Level           Level      `json:"level"`
	FirstCall       time.Time  `json:"first_call"`
	LastCall        time.Time  `json:"last_call"`
}

// SlowQuery is one entry in the slow-query log.
type SlowQuery struct {
	Query      string    `json:"query"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Regression describes an operation whose current average latency exceeds
// its captured baseline.
type Regression struct {
	Operation     string  `json:"operation"`
	BaselineAvgMs float64 `json:"baseline_avg_ms"`
	CurrentAvgMs  float64 `json:"current_avg_ms"`
	ChangePct     float64 `json:"change_pct"`
}

const (
	// sampleLimit caps the retained duration samples per operation.
	sampleLimit = 1000
	// slowQueryLimit caps the slow-query log.
	slowQueryLimit = 100
	// defaultRegressionThresholdPct is the slowdown that turns a tracked
	// operation into a performance alert.
	defaultRegressionThresholdPct = 20.0
)

type operationRecord struct {
	typ       MetricType
	durations []float64
	total     int
	succeeded int
	failed    int
	sumMs     float64
	minMs     float64
	maxMs     float64
	firstCall time.Time
	lastCall  time.Time
}

type activeTracking struct {
	typ       MetricType
	operation string
	startedAt time.Time
}

// Monitor collects latency samples per operation.
type Monitor struct {
	mu     sync.Mutex
	logger logging.Logger
	ids    ids.Generator

	slowQueryThresholdMs float64

	operations  map[string]*operationRecord
	active      map[string]activeTracking
	baselines   map[string]Stats
	slowQueries []SlowQuery

	operationCount    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	slowQueryCount    prometheus.Counter
}

// NewMonitor creates a performance monitor exporting its collectors on reg.
// A nil registry keeps collection local without exporting anything.
func NewMonitor(cfg *config.MonitoringConfig, gen ids.Generator, reg prometheus.Registerer, logger logging.Logger) *Monitor {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Monitor{
		logger:               logger.WithComponent("performance"),
		ids:                  gen,
		slowQueryThresholdMs: cfg.SlowQueryThresholdMs,
		operations:           make(map[string]*operationRecord),
		active:               make(map[string]activeTracking),
		baselines:            make(map[string]Stats),
		operationCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vigil",
				Subsystem: "performance",
				Name:      "operation_total",
				Help:      "Total number of tracked operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vigil",
				Subsystem: "performance",
				Name:      "operation_duration_seconds",
				Help:      "Duration of tracked operations in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation", "status"},
		),
		slowQueryCount: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vigil",
				Subsystem: "performance",
				Name:      "slow_queries_total",
				Help:      "Total number of queries over the slow-query threshold",
			},
		),
	}
}

// StartTracking opens a tracked operation and returns the tracking ID to
// close it with.
func (m *Monitor) StartTracking(typ MetricType, operation string) string {
	id := m.ids.NewID()

	m.mu.Lock()
	m.active[id] = activeTracking{typ: typ, operation: operation, startedAt: time.Now().UTC()}
	m.mu.Unlock()

	return id
}

// EndTracking closes a tracked operation and records its duration. Returns
// false for an unknown or already-closed tracking ID.
func (m *Monitor) EndTracking(trackingID string, success bool) bool {
	m.mu.Lock()
	tracking, ok := m.active[trackingID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.active, trackingID)
	m.mu.Unlock()

	m.record(tracking.typ, tracking.operation, time.Since(tracking.startedAt), success)
	return true
}

// TrackQuery records a database query sample. Queries over the slow-query
// threshold also land in the slow-query log.
func (m *Monitor) TrackQuery(queryType string, duration time.Duration, success bool) {
	m.record(MetricDatabaseQuery, queryType, duration, success)

	ms := durationMs(duration)
	if ms <= m.slowQueryThresholdMs {
		return
	}

	m.mu.Lock()
	m.slowQueries = append(m.slowQueries, SlowQuery{
		Query:      queryType,
		DurationMs: ms,
		Timestamp:  time.Now().UTC(),
	})
	m.slowQueries = types.TrimOldest(m.slowQueries, slowQueryLimit)
	m.mu.Unlock()

	m.slowQueryCount.Inc()
	m.logger.Warn("slow query", "query", queryType,
		"duration_ms", ms, "threshold_ms", m.slowQueryThresholdMs)
}

// TrackAPIRequest records an HTTP request sample keyed by method and
// endpoint. Status codes under 400 count as successes.
func (m *Monitor) TrackAPIRequest(endpoint, method string, status int, duration time.Duration) {
	operation := fmt.Sprintf("%s %s", method, endpoint)
	m.record(MetricAPIRequest, operation, duration, status < 400)
}

func (m *Monitor) record(typ MetricType, operation string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.operationCount.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())

	ms := durationMs(duration)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.operations[operation]
	if !ok {
		rec = &operationRecord{typ: typ, minMs: ms, maxMs: ms, firstCall: now}
		m.operations[operation] = rec
	}

	rec.total++
	if success {
		rec.succeeded++
	} else {
		rec.failed++
	}
	rec.sumMs += ms
	if ms < rec.minMs {
		rec.minMs = ms
	}
	if ms > rec.maxMs {
		rec.maxMs = ms
	}
	rec.lastCall = now
	rec.durations = append(rec.durations, ms)
	rec.durations = types.TrimOldest(rec.durations, sampleLimit)
}

// GetStatistics returns the statistics for one operation.
func (m *Monitor) GetStatistics(operation string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.operations[operation]
	if !ok {
		return Stats{}, false
	}
	return statsLocked(operation, rec), true
}

// GetAllStatistics returns the statistics for every tracked operation.
func (m *Monitor) GetAllStatistics() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make(map[string]Stats, len(m.operations))
	for name, rec := range m.operations {
		all[name] = statsLocked(name, rec)
	}
	return all
}

func statsLocked(operation string, rec *operationRecord) Stats {
	avg := rec.sumMs / float64(rec.total)
	return Stats{
		Operation:       operation,
		Type:            rec.typ,
		TotalCalls:      rec.total,
		SuccessfulCalls: rec.succeeded,
		FailedCalls:     rec.failed,
		AvgDurationMs:   avg,
		MinDurationMs:   rec.minMs,
		MaxDurationMs:   rec.maxMs,
		P50DurationMs:   metrics.CalculatePercentile(rec.durations, 50),
		P95DurationMs:   metrics.CalculatePercentile(rec.durations, 95),
		P99DurationMs:   metrics.CalculatePercentile(rec.durations, 99),
		Level:           LevelFor(time.Duration(avg * float64(time.Millisecond))),
		FirstCall:       rec.firstCall,
		LastCall:        rec.lastCall,
	}
}

// GetSlowQueries returns slow-query log entries newest first. Non-positive
// limits return the full retained log.
func (m *Monitor) GetSlowQueries(limit int) []SlowQuery {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.slowQueries)
	if limit > 0 && limit < n {
		n = limit
	}

	queries := make([]SlowQuery, 0, n)
	for i := len(m.slowQueries) - 1; i >= 0 && len(queries) < n; i-- {
		queries = append(queries, m.slowQueries[i])
	}
	return queries
}

// SetBaseline captures the current statistics of an operation as the
// regression baseline. An empty operation captures every tracked operation.
// Returns false when nothing was captured.
func (m *Monitor) SetBaseline(operation string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if operation == "" {
		for name, rec := range m.operations {
			m.baselines[name] = statsLocked(name, rec)
		}
		return len(m.operations) > 0
	}

	rec, ok := m.operations[operation]
	if !ok {
		return false
	}
	m.baselines[operation] = statsLocked(operation, rec)
	return true
}

// DetectRegressions compares every baselined operation's current average
// latency against its baseline and returns the ones that slowed down by more
// than thresholdPct percent, ordered by operation name.
func (m *Monitor) DetectRegressions(thresholdPct float64) []Regression {
	m.mu.Lock()
	defer m.mu.Unlock()

	regressions := make([]Regression, 0)
	for name, base := range m.baselines {
		rec, ok := m.operations[name]
		if !ok || base.AvgDurationMs <= 0 {
			continue
		}

		current := statsLocked(name, rec)
		change := (current.AvgDurationMs - base.AvgDurationMs) / base.AvgDurationMs * 100
		if change > thresholdPct {
			regressions = append(regressions, Regression{
				Operation:     name,
				BaselineAvgMs: base.AvgDurationMs,
				CurrentAvgMs:  current.AvgDurationMs,
				ChangePct:     change,
			})
		}
	}

	sort.Slice(regressions, func(i, j int) bool {
		return regressions[i].Operation < regressions[j].Operation
	})
	return regressions
}

// GetPerformanceAlerts turns detected regressions into alert drafts ready
// for the alert manager, which stamps IDs and timestamps on creation.
func (m *Monitor) GetPerformanceAlerts() []types.Alert {
	regressions := m.DetectRegressions(defaultRegressionThresholdPct)

	alerts := make([]types.Alert, 0, len(regressions))
	for _, r := range regressions {
		alerts = append(alerts, types.Alert{
			Type:     types.AlertTypePatternChange,
			Severity: types.SeverityWarning,
			Title:    fmt.Sprintf("Performance regression in %s", r.Operation),
			Description: fmt.Sprintf("average latency %.0fms is %.1f%% above the %.0fms baseline",
				r.CurrentAvgMs, r.ChangePct, r.BaselineAvgMs),
			AffectedMetrics: []string{r.Operation},
		})
	}
	return alerts
}

// ClearOldMetrics drops operations idle past the retention period, their
// baselines, and slow-query entries older than the cutoff. Returns how many
// records were removed.
func (m *Monitor) ClearOldMetrics(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for name, rec := range m.operations {
		if rec.lastCall.Before(cutoff) {
			delete(m.operations, name)
			delete(m.baselines, name)
			removed++
		}
	}

	kept := m.slowQueries[:0]
	for _, q := range m.slowQueries {
		if q.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, q)
	}
	m.slowQueries = kept

	return removed
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
