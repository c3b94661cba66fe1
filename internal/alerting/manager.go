// Package alerting owns the alert lifecycle: creation, acknowledgement, and
// resolution, plus the threshold monitor, the correlation engine, and the
// predictive warning engine that feed it.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// SnapshotStore is the persistence seam for the alert history. Binding one
// is optional; the in-memory path never blocks on it.
type SnapshotStore interface {
	Initialize(ctx context.Context) error
	SaveAlerts(ctx context.Context, alerts []types.Alert) error
	LoadAlerts(ctx context.Context) ([]types.Alert, error)
}

// EventPublisher broadcasts alert lifecycle transitions to live subscribers.
// The websocket hub is the production implementation.
type EventPublisher interface {
	AlertCreated(alert types.Alert)
	AlertAcknowledged(alert types.Alert)
	AlertResolved(alert types.Alert)
}

// Manager is the append-only alert store. Alerts are acknowledged and
// resolved in place, never deleted; the full history doubles as the audit
// trail and the correlation corpus.
type Manager struct {
	mu     sync.Mutex
	logger logging.Logger
	ids    ids.Generator

	alerts     []types.Alert
	suppressed int64

	store  SnapshotStore
	events EventPublisher
}

// NewManager creates an alert manager.
func NewManager(gen ids.Generator, logger logging.Logger) *Manager {
	return &Manager{
		logger: logger.WithComponent("alerting"),
		ids:    gen,
	}
}

// BindSnapshotStore attaches a persistence adapter. Without one the
// persistence methods log and succeed.
func (m *Manager) BindSnapshotStore(store SnapshotStore) {
	m.store = store
}

// BindEvents attaches a live event publisher.
func (m *Manager) BindEvents(events EventPublisher) {
	m.events = events
}

// CreateAlert appends an alert, generating its ID and creation timestamp
// when absent, and returns the ID.
func (m *Manager) CreateAlert(alert types.Alert) string {
	if alert.ID == "" {
		alert.ID = m.ids.NewID()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()

	m.logger.Info("alert created", "alert_id", alert.ID, "title", alert.Title)
	if m.events != nil {
		m.events.AlertCreated(alert)
	}
	return alert.ID
}

// GetAlert returns the alert with the given ID, reporting false when it is
// unknown.
func (m *Manager) GetAlert(id string) (types.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx := m.findLocked(id); idx >= 0 {
		return m.alerts[idx], true
	}
	return types.Alert{}, false
}

// GetActiveAlerts returns every unresolved alert in creation order.
func (m *Manager) GetActiveAlerts() []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]types.Alert, 0)
	for i := range m.alerts {
		if m.alerts[i].IsActive() {
			active = append(active, m.alerts[i])
		}
	}
	return active
}

// GetAllAlerts returns the full alert history, resolved included, in
// creation order.
func (m *Manager) GetAllAlerts() []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]types.Alert, len(m.alerts))
	copy(all, m.alerts)
	return all
}

// AcknowledgeAlert marks an alert as acknowledged by the given user. It
// reports false for unknown IDs; re-acknowledging updates the user.
func (m *Manager) AcknowledgeAlert(id, user string) bool {
	m.mu.Lock()
	idx := m.findLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	m.alerts[idx].IsAcknowledged = true
	m.alerts[idx].AcknowledgedBy = user
	m.alerts[idx].AcknowledgedAt = &now
	acknowledged := m.alerts[idx]
	m.mu.Unlock()

	m.logger.Info("alert acknowledged", "alert_id", id, "user", user)
	if m.events != nil {
		m.events.AlertAcknowledged(acknowledged)
	}
	return true
}

// ResolveAlert stamps an alert's resolution time. It reports false for
// unknown IDs. Resolving twice is a no-op that keeps the first timestamp.
func (m *Manager) ResolveAlert(id string) bool {
	m.mu.Lock()
	idx := m.findLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	if m.alerts[idx].ResolvedAt != nil {
		m.mu.Unlock()
		return true
	}

	now := time.Now().UTC()
	m.alerts[idx].ResolvedAt = &now
	resolved := m.alerts[idx]
	m.mu.Unlock()

	m.logger.Info("alert resolved", "alert_id", id)
	if m.events != nil {
		m.events.AlertResolved(resolved)
	}
	return true
}

// GetAlertStatistics summarizes alert volume over the trailing number of
// days. Accuracy is 1 minus the false-positive share; with nothing in the
// window it reports a clean 1.0.
func (m *Manager) GetAlertStatistics(days int) types.AlertStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := types.AlertStatistics{
		PeriodDays:   days,
		AccuracyRate: 1.0,
		CalculatedAt: time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	for i := range m.alerts {
		a := &m.alerts[i]
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		stats.TotalAlerts++
		if a.Severity == types.SeverityCritical {
			stats.CriticalAlerts++
		}
		if a.IsAcknowledged {
			stats.AcknowledgedAlerts++
		}
	}

	if stats.TotalAlerts > 0 {
		stats.AccuracyRate = 1.0 - float64(stats.FalsePositives)/float64(stats.TotalAlerts)
	}
	return stats
}

// SuppressDuplicateAlert reports whether an active alert with the same type
// and the same affected-metric set already exists. Suppression only bumps a
// counter; it never creates a record.
func (m *Manager) SuppressDuplicateAlert(alert types.Alert) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		existing := &m.alerts[i]
		if !existing.IsActive() || existing.Type != alert.Type {
			continue
		}
		if sameMetricSet(existing.AffectedMetrics, alert.AffectedMetrics) {
			m.suppressed++
			m.logger.Debug("duplicate alert suppressed",
				"type", string(alert.Type), "existing_id", existing.ID)
			return true
		}
	}
	return false
}

// SuppressedCount returns how many duplicate alerts were suppressed.
func (m *Manager) SuppressedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressed
}

// InitializeDatabase prepares the bound snapshot store.
func (m *Manager) InitializeDatabase(ctx context.Context) error {
	if m.store == nil {
		m.logger.Info("no snapshot store bound, alert persistence disabled")
		return nil
	}
	return m.store.Initialize(ctx)
}

// SaveToDatabase writes the alert history to the bound store. State is
// snapshotted under the lock; the write happens outside it.
func (m *Manager) SaveToDatabase(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	snapshot := make([]types.Alert, len(m.alerts))
	copy(snapshot, m.alerts)
	m.mu.Unlock()

	if err := m.store.SaveAlerts(ctx, snapshot); err != nil {
		return fmt.Errorf("saving alerts: %w", err)
	}
	m.logger.Debug("alerts saved", "count", len(snapshot))
	return nil
}

// LoadFromDatabase replaces the in-memory history with the stored one.
func (m *Manager) LoadFromDatabase(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	alerts, err := m.store.LoadAlerts(ctx)
	if err != nil {
		return fmt.Errorf("loading alerts: %w", err)
	}

	m.mu.Lock()
	m.alerts = alerts
	m.mu.Unlock()

	m.logger.Info("alerts loaded", "count", len(alerts))
	return nil
}

func (m *Manager) findLocked(id string) int {
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			return i
		}
	}
	return -1
}

// sameMetricSet reports whether two metric lists name the same set,
// ignoring order and duplicates.
func sameMetricSet(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, m := range a {
		setA[m] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, m := range b {
		setB[m] = struct{}{}
	}

	if len(setA) != len(setB) {
		return false
	}
	for m := range setA {
		if _, ok := setB[m]; !ok {
			return false
		}
	}
	return true
}
