package governance

import (
	"fmt"
	"sort"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/metrics"
)

// Evaluator evaluates admissibility criteria.
type Evaluator struct {
	policy     Policy
	thresholds Thresholds
}

// NewEvaluator creates a new governance evaluator with DefaultThresholds.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy, thresholds: DefaultThresholds()}
}

// WithThresholds sets the structural thresholds.
func (e *Evaluator) WithThresholds(t Thresholds) *Evaluator {
	e.thresholds = t
	return e
}

// Policy returns the evaluator's policy.
func (e *Evaluator) Policy() Policy { return e.policy }

// Evaluate produces the checklist for one aligned candidate.
// Demand is classified over the aligned horizon; Filter classifies the whole series.
// Admitted only if ALL criteria pass.
func (e *Evaluator) Evaluate(a *metrics.Alignment) Decision {
	actuals := make([]float64, a.Len())
	for i := range actuals {
		actuals[i] = a.Pair(i).Actual
	}
	return e.evaluate(a, ClassifyDQC(actuals, e.thresholds))
}

func (e *Evaluator) evaluate(a *metrics.Alignment, dqc DQCResult) Decision {
	fpc := ClassifyFPC(a, e.policy.Tau, e.thresholds)
	criteria := e.evaluateCriteria(dqc, fpc)

	admitted := true
	var reasons []string
	for _, c := range criteria {
		if !c.Pass {
			admitted = false
			reasons = append(reasons, fmt.Sprintf("%s below threshold (actual %s, required %s)", c.Name, c.Actual, c.Threshold))
		}
	}
	if !structurallyOK(dqc.Class) {
		reasons = append(reasons, dqc.Reasons...)
	}
	if !structurallyOK(fpc.Class) {
		reasons = append(reasons, fpc.Reasons...)
	}
	if admitted {
		reasons = append(reasons, "all criteria passed")
	}

	return Decision{
		SeriesID: a.SeriesID,
		ModelID:  a.ModelID,
		Admitted: admitted,
		DQC:      dqc.Class,
		FPC:      fpc.Class,
		Signals:  fpc.Signals,
		Criteria: criteria,
		Reasons:  reasons,
	}
}

// structurallyOK reports whether a DQC or FPC class permits admission.
func structurallyOK(class string) bool {
	return class != DQCIncompatible && class != FPCIncompatible
}

func (e *Evaluator) evaluateCriteria(dqc DQCResult, fpc FPCResult) []CriterionResult {
	p := e.policy
	sig := fpc.Signals
	criteria := make([]CriterionResult, 0, 5)

	// 1. Structural prerequisites
	criteria = append(criteria, CriterionResult{
		Name:      "DQC",
		Threshold: "not " + DQCIncompatible,
		Actual:    dqc.Class,
		Pass:      structurallyOK(dqc.Class),
	})
	criteria = append(criteria, CriterionResult{
		Name:      "FPC",
		Threshold: "not " + FPCIncompatible,
		Actual:    fpc.Class,
		Pass:      structurallyOK(fpc.Class),
	})

	// 2. Horizon support
	criteria = append(criteria, CriterionResult{
		Name:      "Horizon support",
		Threshold: fmt.Sprintf(">= %d", p.MinSupport),
		Actual:    fmt.Sprintf("%d", sig.Intervals),
		Pass:      sig.Intervals >= p.MinSupport,
	})

	// 3. HR@τ
	criteria = append(criteria, CriterionResult{
		Name:      fmt.Sprintf("HR@%g", p.Tau),
		Threshold: fmt.Sprintf(">= %.2f", p.HitRateMin),
		Actual:    fmt.Sprintf("%.4f", sig.HitRate),
		Pass:      sig.HitRate >= p.HitRateMin,
	})

	// 4. NSL, only when configured
	if p.NSLMin != nil {
		criteria = append(criteria, CriterionResult{
			Name:      "No-shortfall level",
			Threshold: fmt.Sprintf(">= %.2f", *p.NSLMin),
			Actual:    fmt.Sprintf("%.4f", sig.NSL),
			Pass:      sig.NSL >= *p.NSLMin,
		})
	}

	return criteria
}

// Filter splits candidates into admitted forecasts and governance decisions.
// Candidates that cannot be aligned are passed through untouched so selection
// reports them as incomparable.
func (e *Evaluator) Filter(series *domain.Series, candidates []*domain.Forecast) ([]*domain.Forecast, []Decision) {
	actuals := make([]float64, len(series.Points))
	for i, p := range series.Points {
		actuals[i] = p.Value
	}
	dqc := ClassifyDQC(actuals, e.thresholds)

	admitted := make([]*domain.Forecast, 0, len(candidates))
	decisions := make([]Decision, 0, len(candidates))
	for _, c := range candidates {
		a, err := metrics.Align(series, c)
		if err != nil {
			admitted = append(admitted, c)
			continue
		}
		d := e.evaluate(a, dqc)
		decisions = append(decisions, d)
		if d.Admitted {
			admitted = append(admitted, c)
		}
	}
	return admitted, decisions
}

// SortDecisions orders decisions by series id, then model id.
func SortDecisions(decisions []Decision) {
	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].SeriesID != decisions[j].SeriesID {
			return decisions[i].SeriesID < decisions[j].SeriesID
		}
		return decisions[i].ModelID < decisions[j].ModelID
	})
}

// Rejected returns the decisions that did not admit their candidate.
func Rejected(decisions []Decision) []Decision {
	var out []Decision
	for _, d := range decisions {
		if !d.Admitted {
			out = append(out, d)
		}
	}
	return out
}
