package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

func newTestManager() *Manager {
	return NewManager(ids.NewSequentialGenerator("alert"), logging.NewNoOpLogger())
}

type fakeAlertStore struct {
	initialized bool
	saved       []types.Alert
	toLoad      []types.Alert
	failSave    bool
	failLoad    bool
}

func (f *fakeAlertStore) Initialize(_ context.Context) error {
	f.initialized = true
	return nil
}

func (f *fakeAlertStore) SaveAlerts(_ context.Context, alerts []types.Alert) error {
	if f.failSave {
		return errors.New("connection refused")
	}
	f.saved = alerts
	return nil
}

func (f *fakeAlertStore) LoadAlerts(_ context.Context) ([]types.Alert, error) {
	if f.failLoad {
		return nil, errors.New("connection refused")
	}
	return f.toLoad, nil
}

type recordingEvents struct {
	created      []types.Alert
	acknowledged []types.Alert
	resolved     []types.Alert
}

func (r *recordingEvents) AlertCreated(a types.Alert)      { r.created = append(r.created, a) }
func (r *recordingEvents) AlertAcknowledged(a types.Alert) { r.acknowledged = append(r.acknowledged, a) }
func (r *recordingEvents) AlertResolved(a types.Alert)     { r.resolved = append(r.resolved, a) }

func TestManager_CreateAlertFillsDefaults(t *testing.T) {
	m := newTestManager()

	id := m.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        types.SeverityWarning,
		Title:           "CPU high",
		AffectedMetrics: []string{"cpu_usage"},
	})
	require.NotEmpty(t, id)

	alert, ok := m.GetAlert(id)
	require.True(t, ok)
	assert.Equal(t, id, alert.ID)
	assert.False(t, alert.CreatedAt.IsZero())
	assert.Nil(t, alert.ResolvedAt)
	assert.True(t, alert.IsActive())
}

func TestManager_CreateAlertPreservesProvidedFields(t *testing.T) {
	m := newTestManager()
	created := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	id := m.CreateAlert(types.Alert{
		ID:        "external-42",
		Type:      types.AlertTypeAnomalyDetected,
		Severity:  types.SeverityInfo,
		CreatedAt: created,
	})
	assert.Equal(t, "external-42", id)

	alert, ok := m.GetAlert("external-42")
	require.True(t, ok)
	assert.True(t, alert.CreatedAt.Equal(created))
}

func TestManager_GetAlertUnknown(t *testing.T) {
	m := newTestManager()

	alert, ok := m.GetAlert("missing")
	assert.False(t, ok)
	assert.Empty(t, alert.ID)
}

func TestManager_GetActiveAlertsFiltersResolved(t *testing.T) {
	m := newTestManager()

	first := m.CreateAlert(types.Alert{Type: types.AlertTypeThresholdViolation, Severity: types.SeverityWarning})
	second := m.CreateAlert(types.Alert{Type: types.AlertTypeAnomalyDetected, Severity: types.SeverityError})
	require.True(t, m.ResolveAlert(first))

	active := m.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)

	// Resolution never removes history.
	assert.Len(t, m.GetAllAlerts(), 2)
}

func TestManager_AcknowledgeAlert(t *testing.T) {
	m := newTestManager()
	id := m.CreateAlert(types.Alert{Type: types.AlertTypeThresholdViolation, Severity: types.SeverityCritical})

	assert.True(t, m.AcknowledgeAlert(id, "oncall-sre"))

	alert, ok := m.GetAlert(id)
	require.True(t, ok)
	assert.True(t, alert.IsAcknowledged)
	assert.Equal(t, "oncall-sre", alert.AcknowledgedBy)
	require.NotNil(t, alert.AcknowledgedAt)

	// Re-acknowledging succeeds and records the newest user.
	assert.True(t, m.AcknowledgeAlert(id, "second-responder"))
	alert, _ = m.GetAlert(id)
	assert.Equal(t, "second-responder", alert.AcknowledgedBy)

	assert.False(t, m.AcknowledgeAlert("missing", "nobody"))
}

func TestManager_ResolveAlertIdempotent(t *testing.T) {
	m := newTestManager()
	id := m.CreateAlert(types.Alert{Type: types.AlertTypeThresholdViolation, Severity: types.SeverityWarning})

	assert.False(t, m.ResolveAlert("missing"))

	require.True(t, m.ResolveAlert(id))
	alert, _ := m.GetAlert(id)
	require.NotNil(t, alert.ResolvedAt)
	firstResolved := *alert.ResolvedAt

	// Resolving again succeeds but keeps the original timestamp.
	time.Sleep(5 * time.Millisecond)
	require.True(t, m.ResolveAlert(id))
	alert, _ = m.GetAlert(id)
	require.NotNil(t, alert.ResolvedAt)
	assert.True(t, alert.ResolvedAt.Equal(firstResolved))
}

func TestManager_GetAlertStatistics(t *testing.T) {
	m := newTestManager()

	// Two recent alerts, one critical and acknowledged, plus one stale
	// alert outside the trailing window.
	recent := m.CreateAlert(types.Alert{Type: types.AlertTypeThresholdViolation, Severity: types.SeverityCritical})
	m.CreateAlert(types.Alert{Type: types.AlertTypeAnomalyDetected, Severity: types.SeverityWarning})
	m.CreateAlert(types.Alert{
		Type:      types.AlertTypeThresholdViolation,
		Severity:  types.SeverityCritical,
		CreatedAt: time.Now().UTC().Add(-10 * 24 * time.Hour),
	})
	require.True(t, m.AcknowledgeAlert(recent, "oncall"))

	stats := m.GetAlertStatistics(7)
	assert.Equal(t, 7, stats.PeriodDays)
	assert.Equal(t, 2, stats.TotalAlerts)
	assert.Equal(t, 1, stats.CriticalAlerts)
	assert.Equal(t, 1, stats.AcknowledgedAlerts)
	assert.Equal(t, 0, stats.FalsePositives)
	assert.InDelta(t, 1.0, stats.AccuracyRate, 1e-9)
	assert.False(t, stats.CalculatedAt.IsZero())
}

func TestManager_GetAlertStatisticsEmpty(t *testing.T) {
	m := newTestManager()

	stats := m.GetAlertStatistics(30)
	assert.Zero(t, stats.TotalAlerts)
	assert.InDelta(t, 1.0, stats.AccuracyRate, 1e-9)
}

func TestManager_SuppressDuplicateAlert(t *testing.T) {
	m := newTestManager()

	id := m.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        types.SeverityWarning,
		AffectedMetrics: []string{"cpu_usage", "load_avg"},
	})

	duplicate := types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		AffectedMetrics: []string{"load_avg", "cpu_usage"}, // order must not matter
	}
	assert.True(t, m.SuppressDuplicateAlert(duplicate))
	assert.Equal(t, int64(1), m.SuppressedCount())

	// Different type or metric set is not a duplicate.
	assert.False(t, m.SuppressDuplicateAlert(types.Alert{
		Type:            types.AlertTypeAnomalyDetected,
		AffectedMetrics: []string{"cpu_usage", "load_avg"},
	}))
	assert.False(t, m.SuppressDuplicateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		AffectedMetrics: []string{"cpu_usage"},
	}))

	// Once the existing alert is resolved it no longer suppresses.
	require.True(t, m.ResolveAlert(id))
	assert.False(t, m.SuppressDuplicateAlert(duplicate))
	assert.Equal(t, int64(1), m.SuppressedCount())

	// Suppression never created records.
	assert.Len(t, m.GetAllAlerts(), 1)
}

func TestManager_PublishesLifecycleEvents(t *testing.T) {
	m := newTestManager()
	events := &recordingEvents{}
	m.BindEvents(events)

	id := m.CreateAlert(types.Alert{Type: types.AlertTypeThresholdViolation, Severity: types.SeverityWarning})
	require.True(t, m.AcknowledgeAlert(id, "oncall"))
	require.True(t, m.ResolveAlert(id))
	// A second resolve is silent.
	require.True(t, m.ResolveAlert(id))

	require.Len(t, events.created, 1)
	assert.Equal(t, id, events.created[0].ID)
	require.Len(t, events.acknowledged, 1)
	assert.Equal(t, "oncall", events.acknowledged[0].AcknowledgedBy)
	require.Len(t, events.resolved, 1)
	assert.NotNil(t, events.resolved[0].ResolvedAt)
}

func TestManager_Persistence(t *testing.T) {
	t.Run("unbound store is a no-op", func(t *testing.T) {
		m := newTestManager()
		ctx := context.Background()
		assert.NoError(t, m.InitializeDatabase(ctx))
		assert.NoError(t, m.SaveToDatabase(ctx))
		assert.NoError(t, m.LoadFromDatabase(ctx))
	})

	t.Run("save and load round trip", func(t *testing.T) {
		m := newTestManager()
		store := &fakeAlertStore{}
		m.BindSnapshotStore(store)
		ctx := context.Background()

		require.NoError(t, m.InitializeDatabase(ctx))
		assert.True(t, store.initialized)

		m.CreateAlert(types.Alert{Type: types.AlertTypeThresholdViolation, Severity: types.SeverityWarning})
		require.NoError(t, m.SaveToDatabase(ctx))
		require.Len(t, store.saved, 1)

		store.toLoad = []types.Alert{
			{ID: "restored-1", Type: types.AlertTypeAnomalyDetected},
			{ID: "restored-2", Type: types.AlertTypeThresholdViolation},
		}
		require.NoError(t, m.LoadFromDatabase(ctx))
		assert.Len(t, m.GetAllAlerts(), 2)
		_, ok := m.GetAlert("restored-1")
		assert.True(t, ok)
	})

	t.Run("failures propagate", func(t *testing.T) {
		m := newTestManager()
		m.BindSnapshotStore(&fakeAlertStore{failSave: true, failLoad: true})
		ctx := context.Background()

		assert.ErrorContains(t, m.SaveToDatabase(ctx), "saving alerts")
		assert.ErrorContains(t, m.LoadFromDatabase(ctx), "loading alerts")
	})
}
