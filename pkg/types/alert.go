package types

import (
	"errors"
	"fmt"
	"time"
)

// AlertType classifies what produced an alert.
type AlertType string

const (
	// AlertTypeThresholdViolation is raised by the threshold monitor after
	// enough consecutive out-of-bound samples.
	AlertTypeThresholdViolation AlertType = "threshold_violation"
	// AlertTypeAnomalyDetected is raised by the statistical detector.
	AlertTypeAnomalyDetected AlertType = "anomaly_detected"
	// AlertTypePatternChange is raised when a metric's behavior shifts.
	AlertTypePatternChange AlertType = "pattern_change"
	// AlertTypeCorrelationAlert is raised for correlated alert clusters.
	AlertTypeCorrelationAlert AlertType = "correlation_alert"
	// AlertTypePredictionWarning is raised ahead of a predicted violation.
	AlertTypePredictionWarning AlertType = "prediction_warning"
)

// Valid returns true if the alert type is known.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeThresholdViolation, AlertTypeAnomalyDetected, AlertTypePatternChange,
		AlertTypeCorrelationAlert, AlertTypePredictionWarning:
		return true
	}
	return false
}

// Severity represents alert severity levels.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Valid returns true if the severity is known.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Alert is the durable record of a condition needing attention. Alerts are
// append-only: they are acknowledged and resolved in place, never deleted,
// so the history doubles as an audit trail.
type Alert struct {
	ID               string     `json:"alert_id"`
	Type             AlertType  `json:"type"`
	Severity         Severity   `json:"severity"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	AffectedMetrics  []string   `json:"affected_metrics"`
	CorrelatedAlerts []string   `json:"correlated_alerts,omitempty"`
	GroupID          string     `json:"group_id,omitempty"`
	IsAcknowledged   bool       `json:"is_acknowledged"`
	AcknowledgedBy   string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// IsActive reports whether the alert is still unresolved.
func (a *Alert) IsActive() bool {
	return a.ResolvedAt == nil
}

// AffectsMetric reports whether the alert references the given metric name.
func (a *Alert) AffectsMetric(name string) bool {
	for _, m := range a.AffectedMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// AnomalyRecord is the evidence trail for a statistical detection. The
// context window is a copy of the samples the score was computed from.
// Confirmed starts false and flips only through an explicit operator
// confirmation call.
type AnomalyRecord struct {
	ID            string        `json:"anomaly_id"`
	MetricName    string        `json:"metric_name"`
	AnomalyScore  float64       `json:"anomaly_score"`
	Threshold     float64       `json:"threshold"`
	ContextWindow []MetricPoint `json:"context_window"`
	Confirmed     bool          `json:"confirmed"`
	DetectedAt    time.Time     `json:"detected_at"`
}

// ThresholdConfig declares static bounds for a metric. The consecutive
// violation counter lives in the threshold monitor, not here.
type ThresholdConfig struct {
	MetricName          string   `json:"metric_name"`
	UpperBound          float64  `json:"upper_bound"`
	LowerBound          float64  `json:"lower_bound"`
	ViolationWindowSize int      `json:"violation_window_size"`
	Severity            Severity `json:"severity"`
}

// Validate rejects malformed threshold configurations, including inverted
// bounds where the lower bound exceeds the upper.
func (tc *ThresholdConfig) Validate() error {
	if tc.MetricName == "" {
		return errors.New("metric name cannot be empty")
	}
	if tc.LowerBound > tc.UpperBound {
		return fmt.Errorf("lower bound %.4f exceeds upper bound %.4f", tc.LowerBound, tc.UpperBound)
	}
	if tc.ViolationWindowSize < 1 {
		return fmt.Errorf("violation window size must be at least 1, got %d", tc.ViolationWindowSize)
	}
	if !tc.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", tc.Severity)
	}
	return nil
}

// AlertStatistics summarizes alert volume and quality over a trailing period.
type AlertStatistics struct {
	PeriodDays         int       `json:"period_days"`
	TotalAlerts        int       `json:"total_alerts"`
	CriticalAlerts     int       `json:"critical_alerts"`
	AcknowledgedAlerts int       `json:"acknowledged_alerts"`
	FalsePositives     int       `json:"false_positives"`
	AccuracyRate       float64   `json:"accuracy_rate"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

// AlertPrediction is a forward-looking warning that a metric is drifting
// toward a violation.
type AlertPrediction struct {
	ID           string    `json:"prediction_id"`
	MetricName   string    `json:"metric_name"`
	Likelihood   float64   `json:"likelihood"`
	Basis        string    `json:"basis"`
	PredictedAt  time.Time `json:"predicted_at"`
	PredictedFor time.Time `json:"predicted_for"`
}
