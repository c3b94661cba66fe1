// Package sla tracks service level agreement definitions and evaluates
// compliance against aggregated technical metrics.
package sla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/errors"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// MetricsSource supplies the aggregated technical metrics compliance checks
// are measured against. *metrics.Collector satisfies it.
type MetricsSource interface {
	GetTechnicalMetrics(windowMinutes int) types.TechnicalAggregate
}

// SnapshotStore persists compliance history across restarts.
type SnapshotStore interface {
	Initialize(ctx context.Context) error
	SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error
	LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error)
}

// Tracker holds SLA definitions and the capped history of compliance checks.
type Tracker struct {
	mu     sync.Mutex
	logger logging.Logger
	source MetricsSource

	historyLimit int
	definitions  []types.SLADefinition
	history      []types.SLACompliance

	store SnapshotStore
}

// NewTracker creates an SLA tracker measuring against source.
func NewTracker(cfg *config.MonitoringConfig, source MetricsSource, logger logging.Logger) *Tracker {
	return &Tracker{
		logger:       logger.WithComponent("sla"),
		source:       source,
		historyLimit: cfg.SLAHistoryLimit,
	}
}

// BindSnapshotStore attaches a persistence backend. Without one the
// persistence methods are no-ops.
func (t *Tracker) BindSnapshotStore(store SnapshotStore) {
	t.store = store
}

// RegisterSLA records the targets a service is held to. Re-registering a
// service replaces its previous definition.
func (t *Tracker) RegisterSLA(def types.SLADefinition) error {
	if err := def.Validate(); err != nil {
		return errors.NewValidationError("sla_definition", err.Error(), def.ServiceName)
	}

	t.mu.Lock()
	replaced := false
	for i := range t.definitions {
		if t.definitions[i].ServiceName == def.ServiceName {
			t.definitions[i] = def
			replaced = true
			break
		}
	}
	if !replaced {
		t.definitions = append(t.definitions, def)
	}
	t.mu.Unlock()

	t.logger.Info("sla registered", "service", def.ServiceName,
		"availability_target", def.AvailabilityTargetPct,
		"replaced", replaced)
	return nil
}

// GetSLADefinitions returns the registered definitions.
func (t *Tracker) GetSLADefinitions() []types.SLADefinition {
	t.mu.Lock()
	defer t.mu.Unlock()

	defs := make([]types.SLADefinition, len(t.definitions))
	copy(defs, t.definitions)
	return defs
}

// CheckSLACompliance measures a service against its registered targets. All
// three targets must hold for the check to be compliant; each failed target
// is named in Violations. The snapshot is appended to the retained history
// whether or not it is compliant. A service with no registered definition
// yields a zero-value snapshot that is not recorded.
func (t *Tracker) CheckSLACompliance(service string) types.SLACompliance {
	result := types.SLACompliance{
		ServiceName:       service,
		MeasurementPeriod: time.Now().UTC(),
	}

	t.mu.Lock()
	var def *types.SLADefinition
	for i := range t.definitions {
		if t.definitions[i].ServiceName == service {
			d := t.definitions[i]
			def = &d
			break
		}
	}
	t.mu.Unlock()

	if def == nil {
		t.logger.Debug("sla check for unregistered service", "service", service)
		return result
	}

	tech := t.source.GetTechnicalMetrics(def.MeasurementWindowMinutes)
	result.ActualAvailability = tech.SuccessRate
	result.ActualLatencyP99Ms = tech.P99LatencyMs
	result.ActualErrorRate = tech.ErrorRate

	if result.ActualAvailability < def.AvailabilityTargetPct {
		result.Violations = append(result.Violations,
			fmt.Sprintf("availability %.2f%% below target %.2f%%",
				result.ActualAvailability, def.AvailabilityTargetPct))
	}
	if result.ActualLatencyP99Ms > def.LatencyP99TargetMs {
		result.Violations = append(result.Violations,
			fmt.Sprintf("p99 latency %.0fms above target %.0fms",
				result.ActualLatencyP99Ms, def.LatencyP99TargetMs))
	}
	if result.ActualErrorRate > def.ErrorRateTargetPct {
		result.Violations = append(result.Violations,
			fmt.Sprintf("error rate %.2f%% above target %.2f%%",
				result.ActualErrorRate, def.ErrorRateTargetPct))
	}
	result.IsCompliant = len(result.Violations) == 0

	t.mu.Lock()
	t.history = append(t.history, result)
	t.history = types.TrimOldest(t.history, t.historyLimit)
	t.mu.Unlock()

	if !result.IsCompliant {
		t.logger.Warn("sla violation", "service", service,
			"violations", len(result.Violations))
	}
	return result
}

// GetSLAReport summarizes the retained compliance history. The days
// parameter is echoed in the report and does not filter the history; the
// compliance rate covers every retained check. Entries mirror the retained
// history one-to-one, newest last.
func (t *Tracker) GetSLAReport(days int) types.SLAReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := types.SLAReport{
		PeriodDays:  days,
		TotalChecks: len(t.history),
		Services:    make([]types.SLAComplianceEntry, 0, len(t.history)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, check := range t.history {
		if check.IsCompliant {
			report.CompliantChecks++
		}
		report.Services = append(report.Services, types.SLAComplianceEntry{
			Service:      check.ServiceName,
			Availability: check.ActualAvailability,
			LatencyP99Ms: check.ActualLatencyP99Ms,
			ErrorRate:    check.ActualErrorRate,
			Compliant:    check.IsCompliant,
		})
	}
	if report.TotalChecks > 0 {
		report.ComplianceRate = float64(report.CompliantChecks) / float64(report.TotalChecks) * 100
	}
	return report
}

// GetComplianceHistory returns the retained compliance snapshots, oldest
// first.
func (t *Tracker) GetComplianceHistory() []types.SLACompliance {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]types.SLACompliance, len(t.history))
	copy(history, t.history)
	return history
}

// InitializeDatabase prepares the bound snapshot store.
func (t *Tracker) InitializeDatabase(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	return t.store.Initialize(ctx)
}

// SaveToDatabase writes the compliance history to the bound store.
func (t *Tracker) SaveToDatabase(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	t.mu.Lock()
	history := make([]types.SLACompliance, len(t.history))
	copy(history, t.history)
	t.mu.Unlock()

	if err := t.store.SaveSLAHistory(ctx, history); err != nil {
		return fmt.Errorf("saving sla history: %w", err)
	}
	t.logger.Debug("sla history saved", "checks", len(history))
	return nil
}

// LoadFromDatabase replaces the compliance history with the stored one.
func (t *Tracker) LoadFromDatabase(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	history, err := t.store.LoadSLAHistory(ctx)
	if err != nil {
		return fmt.Errorf("loading sla history: %w", err)
	}

	t.mu.Lock()
	t.history = types.TrimOldest(history, t.historyLimit)
	t.mu.Unlock()

	t.logger.Info("sla history loaded", "checks", len(history))
	return nil
}
