package alerting

import (
	"fmt"
	"math"
	"sync"
	"time"

	"vigil/internal/ids"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/pkg/types"
)

// Prediction tuning. The drift test compares the newest few samples against
// the rest of the window, scaled by the older segment's spread.
const (
	predictionWindow       = 20
	predictionMinSamples   = 10
	predictionRecentSpan   = 5
	predictionDriftSigmas  = 2.0
	predictionAlertScore   = 0.8
	predictionHistoryLimit = 500
	predictionHorizon      = 30 * time.Minute
)

// WindowSource supplies the recent metric samples drift inspection reads.
// *metrics.Collector is the production implementation.
type WindowSource interface {
	GetRecentWindow(name string, size int) []types.MetricPoint
}

// Predictor inspects metric histories for upward drift and raises warnings
// before a threshold is actually crossed.
type Predictor struct {
	mu     sync.Mutex
	logger logging.Logger
	ids    ids.Generator
	source WindowSource
	alerts AlertSink

	predictions []types.AlertPrediction
}

// NewPredictor creates a predictor reading histories from source and
// raising warnings through alerts.
func NewPredictor(source WindowSource, alerts AlertSink, gen ids.Generator, logger logging.Logger) *Predictor {
	return &Predictor{
		logger: logger.WithComponent("prediction"),
		ids:    gen,
		source: source,
		alerts: alerts,
	}
}

// PredictAlert tests a metric for drift: with at least 10 recent points,
// the mean of the newest 5 must exceed the mean of the older points by more
// than 2 standard deviations of that older segment. A detected drift yields
// a prediction with likelihood min(1, drift/3 sigma); likelihoods above 0.8
// additionally raise a PredictionWarning alert. The second return reports
// whether a prediction was made: too little history or a flat older segment
// are silent negatives.
func (p *Predictor) PredictAlert(metric string) (types.AlertPrediction, bool) {
	window := p.source.GetRecentWindow(metric, predictionWindow)
	if len(window) < predictionMinSamples {
		return types.AlertPrediction{}, false
	}

	split := len(window) - predictionRecentSpan
	older := make([]float64, split)
	for i := 0; i < split; i++ {
		older[i] = window[i].Value
	}
	newest := make([]float64, len(window)-split)
	for i := split; i < len(window); i++ {
		newest[i-split] = window[i].Value
	}

	olderMean, olderStddev := metrics.MeanStddev(older)
	if olderStddev == 0 {
		return types.AlertPrediction{}, false
	}

	newestMean, _ := metrics.MeanStddev(newest)
	drift := newestMean - olderMean
	if drift <= predictionDriftSigmas*olderStddev {
		return types.AlertPrediction{}, false
	}

	likelihood := math.Min(1.0, drift/(3*olderStddev))
	now := time.Now().UTC()
	prediction := types.AlertPrediction{
		ID:         p.ids.NewID(),
		MetricName: metric,
		Likelihood: likelihood,
		Basis: fmt.Sprintf("recent mean %.2f exceeds prior mean %.2f by %.1f sigma",
			newestMean, olderMean, drift/olderStddev),
		PredictedAt:  now,
		PredictedFor: now.Add(predictionHorizon),
	}

	p.mu.Lock()
	p.predictions = append(p.predictions, prediction)
	p.predictions = types.TrimOldest(p.predictions, predictionHistoryLimit)
	p.mu.Unlock()

	p.logger.Info("alert predicted", "metric", metric, "likelihood", likelihood)

	if likelihood > predictionAlertScore {
		p.alerts.CreateAlert(types.Alert{
			Type:            types.AlertTypePredictionWarning,
			Severity:        types.SeverityWarning,
			Title:           fmt.Sprintf("Prediction Warning: %s", metric),
			Description:     prediction.Basis,
			AffectedMetrics: []string{metric},
		})
	}
	return prediction, true
}

// GetAlertPredictions returns the retained predictions in creation order.
func (p *Predictor) GetAlertPredictions() []types.AlertPrediction {
	p.mu.Lock()
	defer p.mu.Unlock()

	predictions := make([]types.AlertPrediction, len(p.predictions))
	copy(predictions, p.predictions)
	return predictions
}
