package metrics

import "math"

// Diagnostics holds service-level diagnostics for one alignment.
// Informative only: they never change scores.
type Diagnostics struct {
	Count   int
	NSL     float64 // no-shortfall level: fraction of intervals with predicted >= actual
	UD      float64 // underbuild depth: mean shortfall over all intervals
	HitRate float64 // fraction of intervals with |error| <= Tau
	Tau     float64
}

// NSL returns the fraction of intervals without shortfall.
func NSL(a *Alignment) float64 {
	p := a.Profile()
	return float64(p.Count-p.ShortfallCount) / float64(p.Count)
}

// UD returns mean shortfall per interval.
func UD(a *Alignment) float64 {
	p := a.Profile()
	return p.Shortfall / float64(p.Count)
}

// HitRate returns the fraction of intervals with |actual - predicted| <= tau.
// tau is an absolute tolerance in demand units.
func HitRate(a *Alignment, tau float64) float64 {
	hits := 0
	for _, p := range a.pairs {
		if math.Abs(p.Actual-p.Predicted) <= tau {
			hits++
		}
	}
	return float64(hits) / float64(len(a.pairs))
}

// Diagnose computes all service diagnostics for an alignment.
func Diagnose(a *Alignment, tau float64) Diagnostics {
	return Diagnostics{
		Count:   a.Len(),
		NSL:     NSL(a),
		UD:      UD(a),
		HitRate: HitRate(a, tau),
		Tau:     tau,
	}
}
