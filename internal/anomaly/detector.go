// Package anomaly implements the windowed statistical anomaly detector.
// Incoming samples are scored against their metric's recent history; scores
// clearing the trigger threshold produce an anomaly record and an alert.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/pkg/types"
)

// WindowSource supplies the recent per-metric samples a detection scores
// against. *metrics.Collector is the production implementation.
type WindowSource interface {
	GetRecentWindow(name string, size int) []types.MetricPoint
}

// AlertSink receives the alert raised when a detection fires.
// *alerting.Manager is the production implementation.
type AlertSink interface {
	CreateAlert(alert types.Alert) string
}

// SnapshotStore is the persistence seam for anomaly records. Binding one is
// optional; the hot path never blocks on it.
type SnapshotStore interface {
	Initialize(ctx context.Context) error
	SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error
	LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error)
}

// EventPublisher broadcasts detections to live subscribers. The websocket
// hub is the production implementation.
type EventPublisher interface {
	AnomalyDetected(record types.AnomalyRecord)
}

// Detector scores incoming samples and keeps a bounded record of detected
// anomalies.
type Detector struct {
	mu     sync.Mutex
	logger logging.Logger
	ids    ids.Generator
	source WindowSource
	alerts AlertSink

	windowSize   int
	minSamples   int
	triggerScore float64
	historyLimit int

	anomalies []types.AnomalyRecord

	store  SnapshotStore
	events EventPublisher
}

// NewDetector creates a detector reading windows from source and raising
// alerts through alerts.
func NewDetector(cfg *config.MonitoringConfig, source WindowSource, alerts AlertSink, gen ids.Generator, logger logging.Logger) *Detector {
	return &Detector{
		logger:       logger.WithComponent("anomaly"),
		ids:          gen,
		source:       source,
		alerts:       alerts,
		windowSize:   cfg.AnomalyWindowSize,
		minSamples:   cfg.AnomalyMinSamples,
		triggerScore: cfg.AnomalyTriggerScore,
		historyLimit: cfg.AnomalyHistoryLimit,
	}
}

// BindSnapshotStore attaches a persistence adapter. Without one the
// persistence methods log and succeed.
func (d *Detector) BindSnapshotStore(store SnapshotStore) {
	d.store = store
}

// BindEvents attaches a live event publisher.
func (d *Detector) BindEvents(events EventPublisher) {
	d.events = events
}

// Score computes the normalized anomaly score of value against window: the
// z-score over the window's mean and population standard deviation, divided
// by the 3-sigma reference and capped at 1. Windows with fewer than two
// samples or zero variance score 0. The z/3 normalization and the trigger
// threshold are independently tunable; neither implies the other.
func Score(value float64, window []types.MetricPoint) float64 {
	if len(window) < 2 {
		return 0
	}

	values := make([]float64, len(window))
	for i := range window {
		values[i] = window[i].Value
	}

	mean, stddev := metrics.MeanStddev(values)
	if stddev == 0 {
		return 0
	}

	z := math.Abs((value - mean) / stddev)
	return math.Min(1.0, z/3.0)
}

// DetectAnomaly scores a sample against its metric's recent window. It
// returns the raised alert's ID when the score clears the trigger, and ""
// when the score stays under it or fewer than the minimum samples exist
// (insufficient data is a normal, silent outcome).
func (d *Detector) DetectAnomaly(point types.MetricPoint) string {
	window := d.source.GetRecentWindow(point.MetricName, d.windowSize)
	if len(window) < d.minSamples {
		return ""
	}

	score := Score(point.Value, window)
	if score <= d.triggerScore {
		return ""
	}

	record := types.AnomalyRecord{
		ID:            d.ids.NewID(),
		MetricName:    point.MetricName,
		AnomalyScore:  score,
		Threshold:     d.triggerScore,
		ContextWindow: window,
		DetectedAt:    time.Now().UTC(),
	}

	d.mu.Lock()
	d.anomalies = append(d.anomalies, record)
	d.anomalies = types.TrimOldest(d.anomalies, d.historyLimit)
	d.mu.Unlock()

	d.logger.Warn("anomaly detected", "metric", point.MetricName, "score", score)

	if d.events != nil {
		d.events.AnomalyDetected(record)
	}

	return d.alerts.CreateAlert(types.Alert{
		Type:            types.AlertTypeAnomalyDetected,
		Severity:        types.SeverityWarning,
		Title:           fmt.Sprintf("Anomaly Detected: %s", point.MetricName),
		Description:     fmt.Sprintf("Metric %s deviates from recent history (score %.2f)", point.MetricName, score),
		AffectedMetrics: []string{point.MetricName},
	})
}

// GetRecentAnomalies returns up to limit anomaly records, newest first. A
// non-positive limit returns every retained record.
func (d *Detector) GetRecentAnomalies(limit int) []types.AnomalyRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.anomalies)
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]types.AnomalyRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, d.anomalies[i])
	}
	return result
}

// ConfirmAnomaly marks a record as operator-confirmed. Unknown IDs report
// false.
func (d *Detector) ConfirmAnomaly(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.anomalies {
		if d.anomalies[i].ID == id {
			d.anomalies[i].Confirmed = true
			d.logger.Info("anomaly confirmed", "anomaly_id", id)
			return true
		}
	}
	return false
}

// InitializeDatabase prepares the bound snapshot store.
func (d *Detector) InitializeDatabase(ctx context.Context) error {
	if d.store == nil {
		d.logger.Info("no snapshot store bound, anomaly persistence disabled")
		return nil
	}
	return d.store.Initialize(ctx)
}

// SaveToDatabase writes the retained anomaly records to the bound store.
// State is snapshotted under the lock; the write happens outside it.
func (d *Detector) SaveToDatabase(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	d.mu.Lock()
	snapshot := make([]types.AnomalyRecord, len(d.anomalies))
	copy(snapshot, d.anomalies)
	d.mu.Unlock()

	if err := d.store.SaveAnomalies(ctx, snapshot); err != nil {
		return fmt.Errorf("saving anomaly records: %w", err)
	}
	d.logger.Debug("anomaly records saved", "count", len(snapshot))
	return nil
}

// LoadFromDatabase replaces the retained records with the stored ones,
// re-applying the history cap.
func (d *Detector) LoadFromDatabase(ctx context.Context) error {
	if d.store == nil {
		return nil
	}

	records, err := d.store.LoadAnomalies(ctx)
	if err != nil {
		return fmt.Errorf("loading anomaly records: %w", err)
	}

	d.mu.Lock()
	d.anomalies = types.TrimOldest(records, d.historyLimit)
	d.mu.Unlock()

	d.logger.Info("anomaly records loaded", "count", len(records))
	return nil
}
