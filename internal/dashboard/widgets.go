package dashboard

import (
	"github.com/go-viper/mapstructure/v2"

	"vigil/internal/errors"
	"vigil/pkg/types"
)

// ChartConfig renders a time series panel.
type ChartConfig struct {
	ChartKind      string `json:"chart_kind" mapstructure:"chart_kind"`
	TimeRangeHours int    `json:"time_range_hours" mapstructure:"time_range_hours"`
	YAxisLabel     string `json:"y_axis_label,omitempty" mapstructure:"y_axis_label"`
	Stacked        bool   `json:"stacked,omitempty" mapstructure:"stacked"`
}

// StatConfig renders a single-value panel.
type StatConfig struct {
	Unit      string  `json:"unit,omitempty" mapstructure:"unit"`
	Precision int     `json:"precision,omitempty" mapstructure:"precision"`
	Sparkline bool    `json:"sparkline,omitempty" mapstructure:"sparkline"`
	WarnAbove float64 `json:"warn_above,omitempty" mapstructure:"warn_above"`
	CritAbove float64 `json:"crit_above,omitempty" mapstructure:"crit_above"`
}

// TableConfig renders a tabular panel.
type TableConfig struct {
	Columns    []string `json:"columns,omitempty" mapstructure:"columns"`
	PageSize   int      `json:"page_size,omitempty" mapstructure:"page_size"`
	SortBy     string   `json:"sort_by,omitempty" mapstructure:"sort_by"`
	Descending bool     `json:"descending,omitempty" mapstructure:"descending"`
}

// HeatmapConfig renders a bucketed distribution panel.
type HeatmapConfig struct {
	Buckets        int    `json:"buckets,omitempty" mapstructure:"buckets"`
	ColorScheme    string `json:"color_scheme,omitempty" mapstructure:"color_scheme"`
	TimeRangeHours int    `json:"time_range_hours,omitempty" mapstructure:"time_range_hours"`
}

// DecodeWidgetConfig decodes a widget's loose configuration map into the
// typed config for its widget type, applying defaults for omitted fields.
func DecodeWidgetConfig(widget types.DashboardWidget) (any, error) {
	switch widget.Type {
	case types.WidgetTypeChart:
		cfg := ChartConfig{ChartKind: "line", TimeRangeHours: 24}
		if err := mapstructure.Decode(widget.Configuration, &cfg); err != nil {
			return nil, errors.NewValidationError("widget_configuration", err.Error(), widget.ID)
		}
		return cfg, nil

	case types.WidgetTypeMetric:
		cfg := StatConfig{Precision: 2}
		if err := mapstructure.Decode(widget.Configuration, &cfg); err != nil {
			return nil, errors.NewValidationError("widget_configuration", err.Error(), widget.ID)
		}
		return cfg, nil

	case types.WidgetTypeTable:
		cfg := TableConfig{PageSize: 20}
		if err := mapstructure.Decode(widget.Configuration, &cfg); err != nil {
			return nil, errors.NewValidationError("widget_configuration", err.Error(), widget.ID)
		}
		return cfg, nil

	case types.WidgetTypeHeatmap:
		cfg := HeatmapConfig{Buckets: 10, TimeRangeHours: 24}
		if err := mapstructure.Decode(widget.Configuration, &cfg); err != nil {
			return nil, errors.NewValidationError("widget_configuration", err.Error(), widget.ID)
		}
		return cfg, nil
	}
	return nil, errors.NewValidationError("widget_type", "unknown widget type", string(widget.Type))
}
