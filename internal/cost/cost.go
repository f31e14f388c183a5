// Package cost implements the asymmetric cost model used by Electric Barometer scoring.
package cost

import (
	"math"

	"eb-evaluation-lab/internal/domain"
)

// Model is a validated, piecewise-linear asymmetric cost function.
//
// cost(y, ŷ) = wu * max(y-ŷ, 0) + wo * max(ŷ-y, 0)
//
// Weights are normalised so that (wu+wo)/2 = 1. The ratio wu/wo (and therefore any
// ranking) is unchanged, and equal weights reduce exactly to absolute error.
type Model struct {
	spec domain.CostSpec
	wu   float64
	wo   float64
}

// Validate checks that both weights are finite, non-negative and not both zero.
func Validate(spec domain.CostSpec) error {
	cu, co := spec.Underforecast, spec.Overforecast
	switch {
	case math.IsNaN(cu) || math.IsNaN(co) || math.IsInf(cu, 0) || math.IsInf(co, 0):
		return &domain.CostSpecError{Spec: spec, Reason: "weights must be finite"}
	case cu < 0 || co < 0:
		return &domain.CostSpecError{Spec: spec, Reason: "weights must be non-negative"}
	case cu == 0 && co == 0:
		return &domain.CostSpecError{Spec: spec, Reason: "weights must not both be zero"}
	}
	return nil
}

// New creates a cost model. Returns ErrInvalidCostSpec for invalid weights.
func New(spec domain.CostSpec) (*Model, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	// Rescale by a power of two so the mean neither overflows nor underflows.
	_, exp := math.Frexp(math.Max(spec.Underforecast, spec.Overforecast))
	u, o := math.Ldexp(spec.Underforecast, -exp), math.Ldexp(spec.Overforecast, -exp)
	mean := (u + o) / 2
	return &Model{
		spec: spec,
		wu:   u / mean,
		wo:   o / mean,
	}, nil
}

// FromRatio creates a cost model with cu = ratio, co = 1.
func FromRatio(ratio float64) (*Model, error) {
	return New(domain.CostSpecFromRatio(ratio))
}

// Symmetric returns the equal-weight model, which is absolute error.
func Symmetric() *Model {
	return &Model{spec: domain.CostSpec{Underforecast: 1, Overforecast: 1}, wu: 1, wo: 1}
}

// Spec returns the spec the model was built from.
func (m *Model) Spec() domain.CostSpec { return m.spec }

// Ratio returns cu/co of the underlying spec.
func (m *Model) Ratio() float64 { return m.spec.Ratio() }

// Weights returns the normalised (under, over) weights.
func (m *Model) Weights() (under, over float64) { return m.wu, m.wo }

// Cost returns the cost of a single (actual, forecast) pair.
func (m *Model) Cost(actual, forecast float64) float64 {
	e := actual - forecast
	if e > 0 {
		return m.wu * e
	}
	return m.wo * -e
}

// Total returns the cost of aggregated shortfall and overbuild volumes.
// Equal to summing Cost over the pairs the volumes came from.
func (m *Model) Total(shortfall, overbuild float64) float64 {
	return m.wu*shortfall + m.wo*overbuild
}
