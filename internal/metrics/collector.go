// Package metrics implements the bounded in-memory metric store: raw sample
// retention, business/technical/cost snapshots, whole-buffer aggregation,
// percentile math, and the optimization recommendations derived from them.
package metrics

import (
	"fmt"
	"math"
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// Parameters of the standalone anomaly check. This check is deliberately
// separate from the windowed detector in internal/anomaly: it requires more
// history, reads only the trailing hour, and flags hard (>3 sigma) outliers
// without score normalization.
const (
	standaloneLookback   = 60 * time.Minute
	standaloneMinSamples = 10
	standaloneZScore     = 3.0
)

// Recommendation trigger levels, matched against the whole-buffer aggregates.
const (
	highAPICallVolume  = 100000
	highComputeCostHr  = 50.0
	highP99LatencyMs   = 200.0
	highErrorRatePct   = 1.0
	cachingSavingsRate = 0.3
	computeSavingsRate = 0.2
)

// Collector is the bounded metric store shared by every subsystem. All
// buffers are capped with oldest-first eviction; overload silently loses
// history and never blocks producers.
type Collector struct {
	mu     sync.Mutex
	logger logging.Logger

	historyLimit  int
	snapshotLimit int
	costLimit     int

	history   []types.MetricPoint
	business  []types.BusinessSnapshot
	technical []types.TechnicalSnapshot
	costs     []types.CostSnapshot
}

// NewCollector creates a metric store with buffer caps from cfg.
func NewCollector(cfg *config.MonitoringConfig, logger logging.Logger) *Collector {
	return &Collector{
		logger:        logger.WithComponent("metrics"),
		historyLimit:  cfg.MetricHistoryLimit,
		snapshotLimit: cfg.SnapshotHistoryLimit,
		costLimit:     cfg.CostHistoryLimit,
	}
}

// AddMetric appends a raw sample to the bounded history. It always reports
// true: a full buffer evicts its oldest point rather than rejecting the new
// one, so producers are never blocked.
func (c *Collector) AddMetric(point types.MetricPoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, point)
	if len(c.history) > c.historyLimit {
		c.logger.Debug("metric history full, evicting oldest point", "limit", c.historyLimit)
		c.history = types.TrimOldest(c.history, c.historyLimit)
	}
	return true
}

// GetMetricHistory returns the first limit retained samples for a metric in
// insertion order. A non-positive limit returns every retained match.
func (c *Collector) GetMetricHistory(name string, limit int) []types.MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []types.MetricPoint
	for i := range c.history {
		if c.history[i].MetricName != name {
			continue
		}
		result = append(result, c.history[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// GetRecentWindow returns the most recent size samples for a metric in
// chronological order. The anomaly detector scores incoming points against
// this window.
func (c *Collector) GetRecentWindow(name string, size int) []types.MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matches []types.MetricPoint
	for i := range c.history {
		if c.history[i].MetricName == name {
			matches = append(matches, c.history[i])
		}
	}
	if size > 0 && len(matches) > size {
		matches = matches[len(matches)-size:]
	}
	return matches
}

// RecordBusinessMetrics appends a business snapshot, evicting the oldest
// when the buffer is full.
func (c *Collector) RecordBusinessMetrics(snapshot types.BusinessSnapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.business = append(c.business, snapshot)
	c.business = types.TrimOldest(c.business, c.snapshotLimit)
	return true
}

// RecordTechnicalMetrics appends a technical snapshot, evicting the oldest
// when the buffer is full.
func (c *Collector) RecordTechnicalMetrics(snapshot types.TechnicalSnapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.technical = append(c.technical, snapshot)
	c.technical = types.TrimOldest(c.technical, c.snapshotLimit)
	return true
}

// RecordCostMetrics appends a cost snapshot, evicting the oldest when the
// buffer is full.
func (c *Collector) RecordCostMetrics(snapshot types.CostSnapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.costs = append(c.costs, snapshot)
	c.costs = types.TrimOldest(c.costs, c.costLimit)
	return true
}

// GetBusinessMetrics aggregates the retained business snapshots: quality
// rates are averaged, decision counts are summed. The minutes parameter is
// echoed in the result but does not filter the buffer; aggregates always
// span everything currently retained.
func (c *Collector) GetBusinessMetrics(minutes int) types.BusinessAggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.businessAggregateLocked(minutes)
}

// GetTechnicalMetrics aggregates the retained technical snapshots: rates and
// latencies are averaged, request counts are summed, and the success rate is
// derived from the request totals. The minutes parameter is echoed only.
func (c *Collector) GetTechnicalMetrics(minutes int) types.TechnicalAggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.technicalAggregateLocked(minutes)
}

// GetCostMetrics aggregates the retained cost snapshots: unit costs are
// averaged, usage counters are summed, and the monthly total projects the
// hourly compute average across a 730-hour month. The months parameter is
// echoed only.
func (c *Collector) GetCostMetrics(months int) types.CostAggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.costAggregateLocked(months)
}

func (c *Collector) businessAggregateLocked(minutes int) types.BusinessAggregate {
	agg := types.BusinessAggregate{WindowMinutes: minutes}
	if len(c.business) == 0 {
		return agg
	}

	for i := range c.business {
		s := &c.business[i]
		agg.DecisionAccuracy += s.DecisionAccuracy
		agg.RuleEffectiveness += s.RuleEffectiveness
		agg.AvgDecisionConfidence += s.AvgDecisionConfidence
		agg.TotalDecisions += s.TotalDecisions
		agg.SuccessfulDecisions += s.SuccessfulDecisions
		agg.FailedDecisions += s.FailedDecisions
	}

	count := float64(len(c.business))
	agg.SampleCount = len(c.business)
	agg.DecisionAccuracy /= count
	agg.RuleEffectiveness /= count
	agg.AvgDecisionConfidence /= count
	return agg
}

func (c *Collector) technicalAggregateLocked(minutes int) types.TechnicalAggregate {
	agg := types.TechnicalAggregate{WindowMinutes: minutes}
	if len(c.technical) == 0 {
		return agg
	}

	for i := range c.technical {
		s := &c.technical[i]
		agg.AvgLatencyMs += s.AvgLatencyMs
		agg.P99LatencyMs += s.P99LatencyMs
		agg.ErrorRate += s.ErrorRate
		agg.CacheHitRate += s.CacheHitRate
		agg.TotalRequests += s.TotalRequests
		agg.FailedRequests += s.FailedRequests
	}

	count := float64(len(c.technical))
	agg.SampleCount = len(c.technical)
	agg.AvgLatencyMs /= count
	agg.P99LatencyMs /= count
	agg.ErrorRate /= count
	agg.CacheHitRate /= count
	if agg.TotalRequests > 0 {
		agg.SuccessRate = float64(agg.TotalRequests-agg.FailedRequests) / float64(agg.TotalRequests) * 100
	}
	return agg
}

func (c *Collector) costAggregateLocked(months int) types.CostAggregate {
	agg := types.CostAggregate{WindowMonths: months}
	if len(c.costs) == 0 {
		return agg
	}

	for i := range c.costs {
		s := &c.costs[i]
		agg.ComputeCostPerHour += s.ComputeCostPerHour
		agg.StorageCostPerMonth += s.StorageCostPerMonth
		agg.APICallCost += s.APICallCost
		agg.ComputeUnitsUsed += s.ComputeUnitsUsed
		agg.StorageGBUsed += s.StorageGBUsed
		agg.APICallsMade += s.APICallsMade
	}

	count := float64(len(c.costs))
	agg.SampleCount = len(c.costs)
	agg.ComputeCostPerHour /= count
	agg.StorageCostPerMonth /= count
	agg.APICallCost /= count

	agg.TotalMonthlyCost = agg.ComputeCostPerHour*types.HoursPerMonth +
		agg.StorageCostPerMonth +
		agg.APICallCost
	return agg
}

// GetMetricsStatistics composes the three category aggregates into one view
// with a cost breakdown, all computed under a single lock acquisition.
func (c *Collector) GetMetricsStatistics() types.MetricsStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := types.MetricsStatistics{
		Business:     c.businessAggregateLocked(0),
		Technical:    c.technicalAggregateLocked(0),
		Cost:         c.costAggregateLocked(0),
		CalculatedAt: time.Now().UTC(),
	}
	stats.CostBreakdown = types.CostBreakdown{
		ComputeCostPerHour:  stats.Cost.ComputeCostPerHour,
		StorageCostPerMonth: stats.Cost.StorageCostPerMonth,
		APICallCost:         stats.Cost.APICallCost,
		TotalMonthly:        stats.Cost.TotalMonthlyCost,
	}
	return stats
}

// GetCostOptimizationRecommendations derives cost-saving hints from the
// aggregated cost view: sustained API call volume suggests caching, a high
// average hourly compute cost suggests rightsizing.
func (c *Collector) GetCostOptimizationRecommendations() []types.Recommendation {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := c.costAggregateLocked(1)
	recommendations := make([]types.Recommendation, 0, 2)

	if cost.APICallsMade > highAPICallVolume {
		recommendations = append(recommendations, types.Recommendation{
			Title:            "Increase caching",
			Description:      "High API call volume detected",
			Category:         types.RecommendationCost,
			Priority:         types.PriorityHigh,
			EstimatedSavings: cost.APICallCost * cachingSavingsRate,
		})
	}
	if cost.ComputeCostPerHour > highComputeCostHr {
		recommendations = append(recommendations, types.Recommendation{
			Title:            "Optimize compute usage",
			Description:      "High compute costs detected",
			Category:         types.RecommendationCost,
			Priority:         types.PriorityMedium,
			EstimatedSavings: cost.ComputeCostPerHour * computeSavingsRate * types.HoursPerMonth,
		})
	}
	return recommendations
}

// GetPerformanceRecommendations derives latency and reliability hints from
// the aggregated technical view.
func (c *Collector) GetPerformanceRecommendations() []types.Recommendation {
	c.mu.Lock()
	defer c.mu.Unlock()

	technical := c.technicalAggregateLocked(60)
	recommendations := make([]types.Recommendation, 0, 2)

	if technical.P99LatencyMs > highP99LatencyMs {
		recommendations = append(recommendations, types.Recommendation{
			Title:       "Reduce latency",
			Description: fmt.Sprintf("P99 latency is %.0fms", technical.P99LatencyMs),
			Category:    types.RecommendationPerformance,
			Priority:    types.PriorityHigh,
		})
	}
	if technical.ErrorRate > highErrorRatePct {
		recommendations = append(recommendations, types.Recommendation{
			Title:       "Reduce error rate",
			Description: fmt.Sprintf("Error rate is %.2f%%", technical.ErrorRate),
			Category:    types.RecommendationPerformance,
			Priority:    types.PriorityCritical,
		})
	}
	return recommendations
}

// IsMetricAnomalous reports whether a value is a hard outlier against the
// metric's trailing-hour history: at least 10 points are required and the
// value must sit more than 3 standard deviations from their mean.
func (c *Collector) IsMetricAnomalous(name string, value float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAnomalousLocked(name, value)
}

// GetAnomalousMetrics checks the single most recent sample against its own
// metric's history and returns the metric name when it qualifies as an
// outlier. Older samples are not re-examined.
func (c *Collector) GetAnomalousMetrics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	anomalous := []string{}
	if len(c.history) == 0 {
		return anomalous
	}

	recent := c.history[len(c.history)-1]
	if c.isAnomalousLocked(recent.MetricName, recent.Value) {
		anomalous = append(anomalous, recent.MetricName)
	}
	return anomalous
}

func (c *Collector) isAnomalousLocked(name string, value float64) bool {
	cutoff := time.Now().Add(-standaloneLookback)

	var values []float64
	for i := range c.history {
		p := &c.history[i]
		if p.MetricName == name && !p.Timestamp.Before(cutoff) {
			values = append(values, p.Value)
		}
	}
	if len(values) < standaloneMinSamples {
		return false
	}

	mean, stddev := MeanStddev(values)
	if stddev == 0 {
		return false
	}
	return math.Abs((value-mean)/stddev) > standaloneZScore
}
