package metrics

import (
	"math"
	"sort"
)

// Distribution summarises a population of values.
type Distribution struct {
	Count  int
	Mean   float64
	Stddev float64
	Min    float64
	P10    float64
	P25    float64
	Median float64
	P75    float64
	P90    float64
	Max    float64
}

// Summarize computes the distribution of values.
// Values are sorted before summation, so the result does not depend on input order.
func Summarize(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := Mean(sorted)
	return Distribution{
		Count:  n,
		Mean:   mean,
		Stddev: Stddev(sorted, mean),
		Min:    sorted[0],
		P10:    Percentile(sorted, 0.10),
		P25:    Percentile(sorted, 0.25),
		Median: Percentile(sorted, 0.50),
		P75:    Percentile(sorted, 0.75),
		P90:    Percentile(sorted, 0.90),
		Max:    sorted[n-1],
	}
}

// Mean calculates the arithmetic mean.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stddev calculates sample standard deviation (n-1 denominator).
func Stddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is a fraction (0.10 = 10th percentile).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
