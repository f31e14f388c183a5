// Package governance decides which candidate forecasts are admissible for selection.
//
// Each (series, model) pair is checked against a conservative policy. Structural
// prerequisites come first: demand must be quantization compatible (DQC) and the
// forecast must be a compatible primitive (FPC). Then HR@τ, optional NSL and support.
// The result is a checklist that is reported alongside selection, never silently applied.
package governance

// Policy is the admissibility policy.
type Policy struct {
	// Tau is the absolute tolerance for HR@τ.
	Tau float64 `yaml:"tau" json:"tau" validate:"gte=0"`
	// HitRateMin is the minimum HR@τ.
	HitRateMin float64 `yaml:"hit_rate_min" json:"hit_rate_min" validate:"gte=0,lte=1"`
	// NSLMin is the optional minimum no-shortfall level.
	NSLMin *float64 `yaml:"nsl_min" json:"nsl_min" validate:"omitempty,gte=0,lte=1"`
	// MinSupport is the minimum number of scorable intervals.
	MinSupport int `yaml:"min_support" json:"min_support" validate:"gte=0"`
}

// DefaultPolicy returns the demo policy: τ = 2, HR@τ >= 0.70, at least one interval.
func DefaultPolicy() Policy {
	return Policy{Tau: 2, HitRateMin: 0.70, MinSupport: 1}
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Decision is the admissibility verdict for one candidate on one series.
type Decision struct {
	SeriesID string
	ModelID  string
	Admitted bool
	DQC      string // demand class of the series
	FPC      string // forecast class of the candidate
	Signals  FPCSignals
	Criteria []CriterionResult
	Reasons  []string
}
