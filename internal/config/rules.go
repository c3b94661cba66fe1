package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vigil/pkg/types"
)

// RulesFile is the declarative provisioning document applied at boot. It
// names the thresholds, SLA definitions, and dashboards that should exist
// before any traffic arrives, so restarts do not depend on operators
// re-creating them over the API.
type RulesFile struct {
	Thresholds []ThresholdRule `yaml:"thresholds"`
	SLAs       []SLARule       `yaml:"slas"`
	Dashboards []DashboardRule `yaml:"dashboards"`
}

// ThresholdRule declares static bounds for one metric.
type ThresholdRule struct {
	Metric          string  `yaml:"metric"`
	UpperBound      float64 `yaml:"upper_bound"`
	LowerBound      float64 `yaml:"lower_bound"`
	ViolationWindow int     `yaml:"violation_window"`
	Severity        string  `yaml:"severity"`
}

// ThresholdConfig converts the rule to the domain type.
func (r ThresholdRule) ThresholdConfig() types.ThresholdConfig {
	window := r.ViolationWindow
	if window < 1 {
		window = 1
	}
	return types.ThresholdConfig{
		MetricName:          r.Metric,
		UpperBound:          r.UpperBound,
		LowerBound:          r.LowerBound,
		ViolationWindowSize: window,
		Severity:            types.Severity(r.Severity),
	}
}

// SLARule declares the targets one service is held to.
type SLARule struct {
	Service                  string  `yaml:"service"`
	AvailabilityTargetPct    float64 `yaml:"availability_target_pct"`
	LatencyP99TargetMs       float64 `yaml:"latency_p99_target_ms"`
	ErrorRateTargetPct       float64 `yaml:"error_rate_target_pct"`
	MeasurementWindowMinutes int     `yaml:"measurement_window_minutes"`
}

// SLADefinition converts the rule to the domain type.
func (r SLARule) SLADefinition() types.SLADefinition {
	return types.SLADefinition{
		ServiceName:              r.Service,
		AvailabilityTargetPct:    r.AvailabilityTargetPct,
		LatencyP99TargetMs:       r.LatencyP99TargetMs,
		ErrorRateTargetPct:       r.ErrorRateTargetPct,
		MeasurementWindowMinutes: r.MeasurementWindowMinutes,
	}
}

// WidgetRule declares one widget on a provisioned dashboard.
type WidgetRule struct {
	Name                   string   `yaml:"name"`
	Type                   string   `yaml:"type"`
	Metrics                []string `yaml:"metrics"`
	RefreshIntervalSeconds int      `yaml:"refresh_interval_seconds"`
}

// DashboardRule declares a dashboard with its widgets.
type DashboardRule struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Columns     int          `yaml:"columns"`
	Widgets     []WidgetRule `yaml:"widgets"`
}

// Layout converts the rule to the domain type. IDs are left empty; the
// dashboard engine stamps them on creation.
func (r DashboardRule) Layout() types.DashboardLayout {
	widgets := make([]types.DashboardWidget, 0, len(r.Widgets))
	for _, w := range r.Widgets {
		widgets = append(widgets, types.DashboardWidget{
			Name:                   w.Name,
			Type:                   types.WidgetType(w.Type),
			MetricNames:            w.Metrics,
			RefreshIntervalSeconds: w.RefreshIntervalSeconds,
			Enabled:                true,
		})
	}
	return types.DashboardLayout{
		Name:        r.Name,
		Description: r.Description,
		Columns:     r.Columns,
		Widgets:     widgets,
	}
}

// LoadRules reads and parses a YAML provisioning file.
func LoadRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return &rules, nil
}
