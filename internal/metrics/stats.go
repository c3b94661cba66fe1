package metrics

import (
	"math"
	"sort"
)

// MeanStddev computes the mean and population standard deviation of values.
// Both are 0 for an empty input.
func MeanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}

	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	return mean, math.Sqrt(sqSum / float64(len(values)))
}

// CalculatePercentile returns the pct-th percentile of values using the
// nearest-rank method: sort ascending, take index int(pct/100*len) clamped
// to the last element. Empty input yields 0. The input slice is not mutated.
func CalculatePercentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(pct / 100.0 * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
