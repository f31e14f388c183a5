package domain

import "math"

// CostSpec holds the asymmetric cost weights for one evaluation run.
// Underforecast (cu) is charged per unit of shortfall (actual > forecast),
// Overforecast (co) per unit of overbuild (forecast > actual).
type CostSpec struct {
	Underforecast float64 `yaml:"underforecast" json:"underforecast"`
	Overforecast  float64 `yaml:"overforecast" json:"overforecast"`
}

// CostSpecFromRatio builds a CostSpec with cu = ratio and co = 1.
func CostSpecFromRatio(ratio float64) CostSpec {
	return CostSpec{Underforecast: ratio, Overforecast: 1}
}

// Ratio returns cu/co. Returns +Inf when co is zero.
func (c CostSpec) Ratio() float64 {
	if c.Overforecast == 0 {
		return math.Inf(1)
	}
	return c.Underforecast / c.Overforecast
}

// Reduction is the per-run rule that folds per-timestamp costs into a score.
type Reduction string

const (
	ReductionMean       Reduction = "mean"       // Σcost / n
	ReductionSum        Reduction = "sum"        // Σcost
	ReductionNormalized Reduction = "normalized" // Σcost / Σactual (CWSL)
)

// IsValid checks if the reduction is a known value.
func (r Reduction) IsValid() bool {
	return r == ReductionMean || r == ReductionSum || r == ReductionNormalized
}

// PenaltyKind selects the readiness penalty curve.
type PenaltyKind string

const (
	PenaltyLinear    PenaltyKind = "linear"    // rate * shortfall_hours
	PenaltyStep      PenaltyKind = "step"      // rate if shortfall > 0
	PenaltyQuadratic PenaltyKind = "quadratic" // rate * shortfall_hours^2
)

// CombineRule selects how the readiness penalty is combined with the raw score.
type CombineRule string

const (
	CombineAdditive       CombineRule = "additive"       // raw + penalty
	CombineMultiplicative CombineRule = "multiplicative" // raw * (1 + penalty)
)

// ReadinessSpec describes the operational readiness requirement.
// Shortfall = max(0, ThresholdMs - forecast lead time).
type ReadinessSpec struct {
	ThresholdMs int64       `yaml:"threshold_ms" json:"threshold_ms"`
	Penalty     PenaltyKind `yaml:"penalty" json:"penalty"`
	Rate        float64     `yaml:"rate" json:"rate"`
	Combine     CombineRule `yaml:"combine" json:"combine"`
}
