// Package readiness applies operational readiness penalties to raw scores.
//
// A forecast delivered with less lead time than the readiness threshold leaves
// operations short of preparation time. The shortfall is converted to hours and
// mapped to a penalty by the configured curve, then combined with the raw score.
package readiness

import (
	"fmt"
	"math"

	"eb-evaluation-lab/internal/domain"
)

const msPerHour = 3_600_000

// Context carries the per-forecast facts the adjustment needs.
type Context struct {
	LeadTimeMs int64
}

// Adjuster applies a ReadinessSpec to raw scores. It holds no state.
type Adjuster struct{}

// NewAdjuster creates a readiness adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// Validate checks a readiness spec. A nil spec is valid and means "no adjustment".
func Validate(spec *domain.ReadinessSpec) error {
	if spec == nil {
		return nil
	}
	if spec.ThresholdMs < 0 {
		return fmt.Errorf("%w: negative threshold %d", domain.ErrInvalidReadinessSpec, spec.ThresholdMs)
	}
	if math.IsNaN(spec.Rate) || math.IsInf(spec.Rate, 0) || spec.Rate < 0 {
		return fmt.Errorf("%w: rate must be finite and non-negative, got %v", domain.ErrInvalidReadinessSpec, spec.Rate)
	}
	switch spec.Penalty {
	case domain.PenaltyLinear, domain.PenaltyStep, domain.PenaltyQuadratic:
	default:
		return fmt.Errorf("%w: unknown penalty kind %q", domain.ErrInvalidReadinessSpec, spec.Penalty)
	}
	switch spec.Combine {
	case domain.CombineAdditive, domain.CombineMultiplicative:
	default:
		return fmt.Errorf("%w: unknown combine rule %q", domain.ErrInvalidReadinessSpec, spec.Combine)
	}
	return nil
}

// ShortfallHours returns max(0, threshold - lead time) in hours.
func ShortfallHours(spec *domain.ReadinessSpec, ctx Context) float64 {
	short := spec.ThresholdMs - ctx.LeadTimeMs
	if short <= 0 {
		return 0
	}
	return float64(short) / msPerHour
}

// Penalty returns the penalty for a validated spec.
func Penalty(spec *domain.ReadinessSpec, ctx Context) float64 {
	h := ShortfallHours(spec, ctx)
	switch spec.Penalty {
	case domain.PenaltyStep:
		if h > 0 {
			return spec.Rate
		}
		return 0
	case domain.PenaltyQuadratic:
		return spec.Rate * h * h
	default:
		return spec.Rate * h
	}
}

// Adjust returns the readiness-adjusted score and the penalty applied.
// A nil spec returns raw unchanged with zero penalty.
// The adjusted score is non-decreasing in the penalty for non-negative raw scores.
func (a *Adjuster) Adjust(raw float64, spec *domain.ReadinessSpec, ctx Context) (adjusted, penalty float64, err error) {
	if spec == nil {
		return raw, 0, nil
	}
	if err := Validate(spec); err != nil {
		return 0, 0, err
	}

	penalty = Penalty(spec, ctx)
	switch spec.Combine {
	case domain.CombineMultiplicative:
		adjusted = raw * (1 + penalty)
	default:
		adjusted = raw + penalty
	}
	return adjusted, penalty, nil
}
