package types

import (
	"errors"
	"fmt"
	"time"
)

// SLADefinition declares the targets a service is held to. One definition
// per service; re-registering replaces the previous definition.
type SLADefinition struct {
	ServiceName              string  `json:"service_name"`
	AvailabilityTargetPct    float64 `json:"availability_target_pct"`
	LatencyP99TargetMs       float64 `json:"latency_p99_target_ms"`
	ErrorRateTargetPct       float64 `json:"error_rate_target_pct"`
	MeasurementWindowMinutes int     `json:"measurement_window_minutes"`
}

// Validate checks the definition for obviously unusable targets.
func (d *SLADefinition) Validate() error {
	if d.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if d.AvailabilityTargetPct < 0 || d.AvailabilityTargetPct > 100 {
		return fmt.Errorf("availability target must be within [0,100], got %.2f", d.AvailabilityTargetPct)
	}
	if d.MeasurementWindowMinutes < 1 {
		return fmt.Errorf("measurement window must be at least 1 minute, got %d", d.MeasurementWindowMinutes)
	}
	return nil
}

// SLACompliance is one compliance check outcome. A snapshot is appended to
// the tracker history on every check, compliant or not.
type SLACompliance struct {
	ServiceName        string    `json:"service_name"`
	MeasurementPeriod  time.Time `json:"measurement_period"`
	ActualAvailability float64   `json:"actual_availability"`
	ActualLatencyP99Ms float64   `json:"actual_latency_p99_ms"`
	ActualErrorRate    float64   `json:"actual_error_rate"`
	IsCompliant        bool      `json:"is_compliant"`
	Violations         []string  `json:"violations,omitempty"`
}

// SLAReport summarizes the compliance history. Entries mirror the retained
// check history one-to-one, newest last.
type SLAReport struct {
	PeriodDays      int                  `json:"period_days"`
	TotalChecks     int                  `json:"total_checks"`
	CompliantChecks int                  `json:"compliant_checks"`
	ComplianceRate  float64              `json:"compliance_rate"`
	Services        []SLAComplianceEntry `json:"services"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// SLAComplianceEntry is the per-check line item inside an SLA report.
type SLAComplianceEntry struct {
	Service      string  `json:"service"`
	Availability float64 `json:"availability"`
	LatencyP99Ms float64 `json:"latency_p99_ms"`
	ErrorRate    float64 `json:"error_rate"`
	Compliant    bool    `json:"compliant"`
}
