package readiness

import (
	"errors"
	"testing"

	"eb-evaluation-lab/internal/domain"
)

func TestAdjust_NilSpecIsNoop(t *testing.T) {
	a := NewAdjuster()
	adj, pen, err := a.Adjust(3.25, nil, Context{LeadTimeMs: 0})
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if adj != 3.25 || pen != 0 {
		t.Errorf("expected (3.25, 0), got (%v, %v)", adj, pen)
	}
}

func TestAdjust_PenaltyKinds(t *testing.T) {
	ctx := Context{LeadTimeMs: 1 * msPerHour} // threshold 3h -> 2h short

	tests := []struct {
		name    string
		kind    domain.PenaltyKind
		combine domain.CombineRule
		wantAdj float64
		wantPen float64
	}{
		{"linear additive", domain.PenaltyLinear, domain.CombineAdditive, 11, 1},
		{"step additive", domain.PenaltyStep, domain.CombineAdditive, 10.5, 0.5},
		{"quadratic additive", domain.PenaltyQuadratic, domain.CombineAdditive, 12, 2},
		{"linear multiplicative", domain.PenaltyLinear, domain.CombineMultiplicative, 20, 1},
		{"quadratic multiplicative", domain.PenaltyQuadratic, domain.CombineMultiplicative, 30, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &domain.ReadinessSpec{ThresholdMs: 3 * msPerHour, Penalty: tt.kind, Rate: 0.5, Combine: tt.combine}
			adj, pen, err := NewAdjuster().Adjust(10, spec, ctx)
			if err != nil {
				t.Fatalf("Adjust failed: %v", err)
			}
			if adj != tt.wantAdj || pen != tt.wantPen {
				t.Errorf("got (%v, %v), want (%v, %v)", adj, pen, tt.wantAdj, tt.wantPen)
			}
		})
	}
}

func TestAdjust_NoShortfallNoPenalty(t *testing.T) {
	spec := &domain.ReadinessSpec{ThresholdMs: 2 * msPerHour, Penalty: domain.PenaltyStep, Rate: 5, Combine: domain.CombineAdditive}
	adj, pen, err := NewAdjuster().Adjust(4, spec, Context{LeadTimeMs: 6 * msPerHour})
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if adj != 4 || pen != 0 {
		t.Errorf("expected (4, 0), got (%v, %v)", adj, pen)
	}
}

func TestAdjust_MonotoneInPenalty(t *testing.T) {
	for _, combine := range []domain.CombineRule{domain.CombineAdditive, domain.CombineMultiplicative} {
		prev := -1.0
		for lead := int64(24); lead >= 0; lead-- {
			spec := &domain.ReadinessSpec{ThresholdMs: 24 * msPerHour, Penalty: domain.PenaltyLinear, Rate: 0.1, Combine: combine}
			adj, _, err := NewAdjuster().Adjust(2, spec, Context{LeadTimeMs: lead * msPerHour})
			if err != nil {
				t.Fatalf("Adjust failed: %v", err)
			}
			if adj < prev {
				t.Errorf("%s: adjusted decreased from %v to %v at lead %dh", combine, prev, adj, lead)
			}
			prev = adj
		}
	}
}

func TestValidate(t *testing.T) {
	good := domain.ReadinessSpec{ThresholdMs: 1000, Penalty: domain.PenaltyLinear, Rate: 1, Combine: domain.CombineAdditive}
	if err := Validate(&good); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	bad := []domain.ReadinessSpec{
		{ThresholdMs: -1, Penalty: domain.PenaltyLinear, Rate: 1, Combine: domain.CombineAdditive},
		{ThresholdMs: 1, Penalty: domain.PenaltyLinear, Rate: -1, Combine: domain.CombineAdditive},
		{ThresholdMs: 1, Penalty: "cubic", Rate: 1, Combine: domain.CombineAdditive},
		{ThresholdMs: 1, Penalty: domain.PenaltyLinear, Rate: 1, Combine: "max"},
		{ThresholdMs: 1, Penalty: domain.PenaltyLinear, Rate: 1},
	}
	for i := range bad {
		if err := Validate(&bad[i]); !errors.Is(err, domain.ErrInvalidReadinessSpec) {
			t.Errorf("case %d: expected ErrInvalidReadinessSpec, got %v", i, err)
		}
		if _, _, err := NewAdjuster().Adjust(1, &bad[i], Context{}); !errors.Is(err, domain.ErrInvalidReadinessSpec) {
			t.Errorf("case %d: Adjust should reject invalid spec, got %v", i, err)
		}
	}
}
