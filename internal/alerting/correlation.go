package alerting

import (
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// AlertSource provides the alert inventory the correlation engine reads.
// *Manager satisfies it.
type AlertSource interface {
	GetAllAlerts() []types.Alert
}

// CorrelationEngine links alerts that share affected metrics. It keeps no
// state of its own; every call works on a fresh snapshot of the alert
// history.
type CorrelationEngine struct {
	logger logging.Logger
	alerts AlertSource
}

// NewCorrelationEngine creates a correlation engine over the given alert
// source.
func NewCorrelationEngine(alerts AlertSource, logger logging.Logger) *CorrelationEngine {
	return &CorrelationEngine{
		logger: logger.WithComponent("correlation"),
		alerts: alerts,
	}
}

// CorrelateAlerts returns the IDs of every other alert sharing at least one
// affected metric with the target. The relation is one hop: alerts related
// only through an intermediate alert are not included. Unknown IDs yield an
// empty list.
func (e *CorrelationEngine) CorrelateAlerts(alertID string) []string {
	alerts := e.alerts.GetAllAlerts()

	var target *types.Alert
	for i := range alerts {
		if alerts[i].ID == alertID {
			target = &alerts[i]
			break
		}
	}

	correlated := make([]string, 0)
	if target == nil {
		return correlated
	}

	for i := range alerts {
		other := &alerts[i]
		if other.ID == alertID {
			continue
		}
		if sharesMetric(target, other) {
			correlated = append(correlated, other.ID)
		}
	}
	return correlated
}

// GroupAlertsByRootCause partitions the alert history into clusters of
// shared affected metrics. Each group is seeded by the earliest unvisited
// alert and closed after collecting that seed's one-hop correlations;
// alerts connected only transitively through an intermediate stay in
// separate groups. Every alert lands in exactly one group.
func (e *CorrelationEngine) GroupAlertsByRootCause() [][]string {
	alerts := e.alerts.GetAllAlerts()

	processed := make(map[string]bool, len(alerts))
	groups := make([][]string, 0)

	for i := range alerts {
		seed := &alerts[i]
		if processed[seed.ID] {
			continue
		}

		group := []string{seed.ID}
		processed[seed.ID] = true

		for j := range alerts {
			other := &alerts[j]
			if processed[other.ID] {
				continue
			}
			if sharesMetric(seed, other) {
				group = append(group, other.ID)
				processed[other.ID] = true
			}
		}
		groups = append(groups, group)
	}

	e.logger.Debug("alerts grouped by root cause",
		"alerts", len(alerts), "groups", len(groups))
	return groups
}

// GetAlertCorrelationGraph returns the full correlation adjacency list:
// symmetric edges between alerts sharing a metric, no self-edges. Isolated
// alerts appear with an empty neighbor list.
func (e *CorrelationEngine) GetAlertCorrelationGraph() map[string][]string {
	alerts := e.alerts.GetAllAlerts()

	graph := make(map[string][]string, len(alerts))
	for i := range alerts {
		neighbors := make([]string, 0)
		for j := range alerts {
			if i == j {
				continue
			}
			if sharesMetric(&alerts[i], &alerts[j]) {
				neighbors = append(neighbors, alerts[j].ID)
			}
		}
		graph[alerts[i].ID] = neighbors
	}
	return graph
}

// sharesMetric reports whether two alerts name at least one common affected
// metric.
func sharesMetric(a, b *types.Alert) bool {
	for _, m := range a.AffectedMetrics {
		if b.AffectsMetric(m) {
			return true
		}
	}
	return false
}
