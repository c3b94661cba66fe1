// Package types provides the core data structures shared across the
// monitoring subsystems: metric samples, category snapshots, aggregates,
// alerts, SLA definitions, dashboards, and reports.
package types

import (
	"errors"
	"time"
)

// Priority levels for recommendations.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Recommendation categories.
const (
	RecommendationCost        = "cost"
	RecommendationPerformance = "performance"
)

// Trend direction labels produced by trend analysis.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// HoursPerMonth is the flat-rate hour count used to project hourly compute
// cost onto a monthly bill.
const HoursPerMonth = 730

// MetricPoint is a single immutable metric sample. Points are retained in a
// bounded buffer with oldest-first eviction; there is no persistence
// guarantee for raw samples.
type MetricPoint struct {
	MetricName string            `json:"metric_name"`
	Value      float64           `json:"value"`
	Timestamp  time.Time         `json:"timestamp"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// NewMetricPoint creates a metric point stamped with the current time.
func NewMetricPoint(name string, value float64, tags map[string]string) MetricPoint {
	return MetricPoint{
		MetricName: name,
		Value:      value,
		Timestamp:  time.Now().UTC(),
		Tags:       tags,
	}
}

// Validate checks that the point carries the minimum required fields.
func (p *MetricPoint) Validate() error {
	if p.MetricName == "" {
		return errors.New("metric name cannot be empty")
	}
	return nil
}

// BusinessSnapshot captures decision-quality indicators at a point in time.
// Recorded by the business layer, aggregated by the collector.
type BusinessSnapshot struct {
	DecisionAccuracy      float64   `json:"decision_accuracy"`
	RuleEffectiveness     float64   `json:"rule_effectiveness"`
	AvgDecisionConfidence float64   `json:"avg_decision_confidence"`
	TotalDecisions        int64     `json:"total_decisions"`
	SuccessfulDecisions   int64     `json:"successful_decisions"`
	FailedDecisions       int64     `json:"failed_decisions"`
	Timestamp             time.Time `json:"timestamp"`
}

// TechnicalSnapshot captures service health indicators at a point in time.
type TechnicalSnapshot struct {
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	P99LatencyMs   float64   `json:"p99_latency_ms"`
	ErrorRate      float64   `json:"error_rate"`
	CacheHitRate   float64   `json:"cache_hit_rate"`
	TotalRequests  int64     `json:"total_requests"`
	FailedRequests int64     `json:"failed_requests"`
	Timestamp      time.Time `json:"timestamp"`
}

// CostSnapshot captures infrastructure spend indicators at a point in time.
type CostSnapshot struct {
	ComputeCostPerHour  float64   `json:"compute_cost_per_hour"`
	StorageCostPerMonth float64   `json:"storage_cost_per_month"`
	APICallCost         float64   `json:"api_call_cost"`
	ComputeUnitsUsed    int64     `json:"compute_units_used"`
	StorageGBUsed       int64     `json:"storage_gb_used"`
	APICallsMade        int64     `json:"api_calls_made"`
	Timestamp           time.Time `json:"timestamp"`
}

// BusinessAggregate summarizes the retained business snapshots. WindowMinutes
// echoes the caller's request; the aggregate spans the whole retained buffer
// (see the collector docs for the retention policy).
type BusinessAggregate struct {
	WindowMinutes         int     `json:"window_minutes"`
	SampleCount           int     `json:"sample_count"`
	DecisionAccuracy      float64 `json:"decision_accuracy"`
	RuleEffectiveness     float64 `json:"rule_effectiveness"`
	AvgDecisionConfidence float64 `json:"avg_decision_confidence"`
	TotalDecisions        int64   `json:"total_decisions"`
	SuccessfulDecisions   int64   `json:"successful_decisions"`
	FailedDecisions       int64   `json:"failed_decisions"`
}

// TechnicalAggregate summarizes the retained technical snapshots. Rates and
// latencies are averaged, request counts are summed, and SuccessRate is
// derived as (total-failed)/total*100 with 0 for an empty window.
type TechnicalAggregate struct {
	WindowMinutes  int     `json:"window_minutes"`
	SampleCount    int     `json:"sample_count"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	P99LatencyMs   float64 `json:"p99_latency_ms"`
	ErrorRate      float64 `json:"error_rate"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}

// CostAggregate summarizes the retained cost snapshots. Unit costs are
// averaged, usage counters are summed, and TotalMonthlyCost projects the
// hourly compute average across a 730-hour month plus storage and API costs.
type CostAggregate struct {
	WindowMonths        int     `json:"window_months"`
	SampleCount         int     `json:"sample_count"`
	ComputeCostPerHour  float64 `json:"compute_cost_per_hour"`
	StorageCostPerMonth float64 `json:"storage_cost_per_month"`
	APICallCost         float64 `json:"api_call_cost"`
	ComputeUnitsUsed    int64   `json:"compute_units_used"`
	StorageGBUsed       int64   `json:"storage_gb_used"`
	APICallsMade        int64   `json:"api_calls_made"`
	TotalMonthlyCost    float64 `json:"total_monthly_cost"`
}

// CostBreakdown splits the cost view by source for dashboard consumption.
type CostBreakdown struct {
	ComputeCostPerHour  float64 `json:"compute"`
	StorageCostPerMonth float64 `json:"storage"`
	APICallCost         float64 `json:"api_calls"`
	TotalMonthly        float64 `json:"total_monthly"`
}

// MetricsStatistics is the composed view over all three snapshot categories.
type MetricsStatistics struct {
	Business      BusinessAggregate  `json:"business"`
	Technical     TechnicalAggregate `json:"technical"`
	Cost          CostAggregate      `json:"cost"`
	CostBreakdown CostBreakdown      `json:"cost_breakdown"`
	CalculatedAt  time.Time          `json:"calculated_at"`
}

// Recommendation is an actionable optimization hint derived from aggregates.
type Recommendation struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Category         string  `json:"category"`
	Priority         string  `json:"priority"`
	EstimatedSavings float64 `json:"estimated_savings,omitempty"`
}
