package service

import "math"

// anomalySigma is the outlier cutoff: amounts above mean + 2*stddev flag.
const anomalySigma = 2.0

// AnomalyThreshold computes mean + 2*stddev (population) over amounts.
// The boolean result is false when amounts is empty, in which case nothing
// can be anomalous.
func AnomalyThreshold(amounts []float64) (float64, bool) {
	if len(amounts) == 0 {
		return 0, false
	}

	var sum float64
	for _, a := range amounts {
		sum += a
	}
	mean := sum / float64(len(amounts))

	var sq float64
	for _, a := range amounts {
		d := a - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(amounts)))

	return mean + anomalySigma*stddev, true
}

// AnomalyFlags recomputes the outlier flag for every amount against the full
// sequence. O(n) per call; the feed volume keeps n small enough that the
// recompute costs nothing measurable. VarianceAccumulator below is the
// incremental replacement for larger volumes.
func AnomalyFlags(amounts []float64) []bool {
	flags := make([]bool, len(amounts))
	threshold, ok := AnomalyThreshold(amounts)
	if !ok {
		return flags
	}
	for i, a := range amounts {
		flags[i] = a > threshold
	}
	return flags
}

// VarianceAccumulator tracks running mean and population variance using
// Welford's method. Threshold() matches AnomalyThreshold over the same
// observations.
type VarianceAccumulator struct {
	count int
	mean  float64
	m2    float64
}

// Observe folds one amount into the accumulator.
func (v *VarianceAccumulator) Observe(amount float64) {
	v.count++
	delta := amount - v.mean
	v.mean += delta / float64(v.count)
	v.m2 += delta * (amount - v.mean)
}

// Count returns the number of observed amounts.
func (v *VarianceAccumulator) Count() int { return v.count }

// Threshold returns mean + 2*stddev, or false when nothing was observed.
func (v *VarianceAccumulator) Threshold() (float64, bool) {
	if v.count == 0 {
		return 0, false
	}
	stddev := math.Sqrt(v.m2 / float64(v.count))
	return v.mean + anomalySigma*stddev, true
}
