package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/logging"
	"vigil/pkg/types"
)

// seedCorrelationFixture creates four alerts with overlapping metrics:
//
//	dbAlert    -> db_connections
//	bridge     -> db_connections, api_latency
//	apiAlert   -> api_latency
//	isolated   -> disk_usage
//
// dbAlert and apiAlert are connected only through bridge.
func seedCorrelationFixture(t *testing.T) (*CorrelationEngine, map[string]string) {
	t.Helper()

	manager := newTestManager()
	ids := make(map[string]string, 4)
	ids["dbAlert"] = manager.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        types.SeverityWarning,
		AffectedMetrics: []string{"db_connections"},
	})
	ids["bridge"] = manager.CreateAlert(types.Alert{
		Type:            types.AlertTypeAnomalyDetected,
		Severity:        types.SeverityError,
		AffectedMetrics: []string{"db_connections", "api_latency"},
	})
	ids["apiAlert"] = manager.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        types.SeverityWarning,
		AffectedMetrics: []string{"api_latency"},
	})
	ids["isolated"] = manager.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        types.SeverityInfo,
		AffectedMetrics: []string{"disk_usage"},
	})

	return NewCorrelationEngine(manager, logging.NewNoOpLogger()), ids
}

func TestCorrelationEngine_CorrelateAlerts(t *testing.T) {
	engine, ids := seedCorrelationFixture(t)

	assert.Equal(t, []string{ids["bridge"]}, engine.CorrelateAlerts(ids["dbAlert"]))
	assert.ElementsMatch(t,
		[]string{ids["dbAlert"], ids["apiAlert"]},
		engine.CorrelateAlerts(ids["bridge"]))
	assert.Equal(t, []string{ids["bridge"]}, engine.CorrelateAlerts(ids["apiAlert"]))
	assert.Empty(t, engine.CorrelateAlerts(ids["isolated"]))
}

func TestCorrelationEngine_UnknownAlertYieldsEmpty(t *testing.T) {
	engine, _ := seedCorrelationFixture(t)

	got := engine.CorrelateAlerts("no-such-alert")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCorrelationEngine_CorrelationIsSymmetric(t *testing.T) {
	engine, ids := seedCorrelationFixture(t)

	contains := func(list []string, id string) bool {
		for _, v := range list {
			if v == id {
				return true
			}
		}
		return false
	}

	all := []string{ids["dbAlert"], ids["bridge"], ids["apiAlert"], ids["isolated"]}
	for _, a := range all {
		for _, b := range all {
			if a == b {
				continue
			}
			assert.Equal(t,
				contains(engine.CorrelateAlerts(a), b),
				contains(engine.CorrelateAlerts(b), a),
				"correlation between %s and %s must be symmetric", a, b)
		}
	}
}

func TestCorrelationEngine_GroupAlertsByRootCause(t *testing.T) {
	engine, ids := seedCorrelationFixture(t)

	groups := engine.GroupAlertsByRootCause()
	require.Len(t, groups, 3)

	// Grouping is single hop: the first group absorbs bridge via the seed's
	// shared metric, leaving apiAlert to seed its own group even though it
	// connects to bridge.
	assert.ElementsMatch(t, []string{ids["dbAlert"], ids["bridge"]}, groups[0])
	assert.Equal(t, []string{ids["apiAlert"]}, groups[1])
	assert.Equal(t, []string{ids["isolated"]}, groups[2])
}

func TestCorrelationEngine_GroupingCoversEveryAlertOnce(t *testing.T) {
	engine, ids := seedCorrelationFixture(t)

	groups := engine.GroupAlertsByRootCause()
	seen := make(map[string]int)
	for _, group := range groups {
		for _, id := range group {
			seen[id]++
		}
	}

	require.Len(t, seen, 4)
	for name, id := range ids {
		assert.Equal(t, 1, seen[id], "alert %s must appear exactly once", name)
	}
}

func TestCorrelationEngine_GroupingEmptyHistory(t *testing.T) {
	engine := NewCorrelationEngine(newTestManager(), logging.NewNoOpLogger())

	groups := engine.GroupAlertsByRootCause()
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestCorrelationEngine_CorrelationGraph(t *testing.T) {
	engine, ids := seedCorrelationFixture(t)

	graph := engine.GetAlertCorrelationGraph()
	require.Len(t, graph, 4)

	assert.ElementsMatch(t, []string{ids["bridge"]}, graph[ids["dbAlert"]])
	assert.ElementsMatch(t, []string{ids["dbAlert"], ids["apiAlert"]}, graph[ids["bridge"]])
	assert.ElementsMatch(t, []string{ids["bridge"]}, graph[ids["apiAlert"]])
	assert.Empty(t, graph[ids["isolated"]])

	// No self-edges anywhere.
	for id, neighbors := range graph {
		assert.NotContains(t, neighbors, id)
	}
}

func TestCorrelationEngine_DuplicateMetricsCountOnce(t *testing.T) {
	manager := newTestManager()
	a := manager.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        types.SeverityWarning,
		AffectedMetrics: []string{"queue_depth", "queue_depth"},
	})
	b := manager.CreateAlert(types.Alert{
		Type:            types.AlertTypeAnomalyDetected,
		Severity:        types.SeverityWarning,
		AffectedMetrics: []string{"queue_depth"},
	})
	engine := NewCorrelationEngine(manager, logging.NewNoOpLogger())

	assert.Equal(t, []string{b}, engine.CorrelateAlerts(a))
	assert.Equal(t, []string{a}, engine.CorrelateAlerts(b))
}
