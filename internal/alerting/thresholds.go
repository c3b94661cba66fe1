package alerting

import (
	"fmt"
	"sync"

	"vigil/internal/errors"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// AlertSink is the alert creation seam; *Manager satisfies it.
type AlertSink interface {
	CreateAlert(alert types.Alert) string
}

// ThresholdMonitor holds registered threshold configurations and the
// per-metric consecutive-violation counters that debounce alerting. The
// counters live here, not in the configs.
type ThresholdMonitor struct {
	mu     sync.Mutex
	logger logging.Logger
	alerts AlertSink

	configs  []types.ThresholdConfig
	counters map[string]int
}

// NewThresholdMonitor creates a threshold monitor raising alerts through
// alerts.
func NewThresholdMonitor(alerts AlertSink, logger logging.Logger) *ThresholdMonitor {
	return &ThresholdMonitor{
		logger:   logger.WithComponent("thresholds"),
		alerts:   alerts,
		counters: make(map[string]int),
	}
}

// RegisterThreshold validates and stores a threshold configuration and
// zeroes the metric's violation counter. Inverted bounds are rejected.
func (tm *ThresholdMonitor) RegisterThreshold(config types.ThresholdConfig) error {
	if err := config.Validate(); err != nil {
		return errors.NewValidationError("threshold_config", err.Error(), config.MetricName)
	}

	tm.mu.Lock()
	tm.configs = append(tm.configs, config)
	tm.counters[config.MetricName] = 0
	tm.mu.Unlock()

	tm.logger.Info("threshold registered", "metric", config.MetricName,
		"upper", config.UpperBound, "lower", config.LowerBound,
		"window", config.ViolationWindowSize)
	return nil
}

// GetThresholds returns the registered configurations in registration order.
func (tm *ThresholdMonitor) GetThresholds() []types.ThresholdConfig {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	configs := make([]types.ThresholdConfig, len(tm.configs))
	copy(configs, tm.configs)
	return configs
}

// CheckThresholdViolation evaluates a sample against every configuration
// registered for the metric. A violating sample increments the metric's
// counter; reaching the configured window size raises one alert, resets the
// counter, and returns the alert ID. A sample back inside the bounds resets
// the counter immediately: the window counts consecutive violations, not a
// rolling total.
func (tm *ThresholdMonitor) CheckThresholdViolation(name string, value float64) string {
	tm.mu.Lock()

	var fired bool
	var severity types.Severity
	for i := range tm.configs {
		cfg := &tm.configs[i]
		if cfg.MetricName != name {
			continue
		}

		violated := value > cfg.UpperBound || value < cfg.LowerBound
		if !violated {
			tm.counters[name] = 0
			continue
		}

		tm.counters[name]++
		if tm.counters[name] >= cfg.ViolationWindowSize {
			tm.counters[name] = 0
			fired = true
			severity = cfg.Severity
			break
		}
	}
	tm.mu.Unlock()

	if !fired {
		return ""
	}

	tm.logger.Warn("threshold alert raised", "metric", name, "value", value)
	return tm.alerts.CreateAlert(types.Alert{
		Type:            types.AlertTypeThresholdViolation,
		Severity:        severity,
		Title:           fmt.Sprintf("Threshold Violation: %s", name),
		Description:     fmt.Sprintf("Metric %s violated threshold", name),
		AffectedMetrics: []string{name},
	})
}
