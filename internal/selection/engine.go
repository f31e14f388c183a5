// Package selection ranks candidate forecasts per series and picks a winner,
// with lazy cost-ratio sweeps for decision-boundary discovery.
package selection

import (
	"sort"

	"eb-evaluation-lab/internal/cost"
	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/metrics"
	"eb-evaluation-lab/internal/readiness"
)

// Engine selects the best candidate forecast for a series.
// Safe for concurrent use: it holds no mutable state.
type Engine struct {
	metrics   *metrics.Engine
	readiness *readiness.Adjuster
}

// NewEngine creates a selection engine.
func NewEngine(m *metrics.Engine, r *readiness.Adjuster) *Engine {
	if r == nil {
		r = readiness.NewAdjuster()
	}
	return &Engine{metrics: m, readiness: r}
}

// Metrics returns the underlying metric engine.
func (e *Engine) Metrics() *metrics.Engine { return e.metrics }

// Select scores every candidate, ranks them and returns the decision along with
// per-candidate results in rank order.
//
// Lower adjusted score wins. Exact ties go to the lexicographically smallest model id.
func (e *Engine) Select(series *domain.Series, candidates []*domain.Forecast, model *cost.Model, spec *domain.ReadinessSpec) (domain.SelectionDecision, []domain.EvaluationResult, error) {
	if err := readiness.Validate(spec); err != nil {
		return domain.SelectionDecision{}, nil, err
	}
	alignments, err := Prepare(series, candidates)
	if err != nil {
		return domain.SelectionDecision{}, nil, err
	}
	return e.rank(series.ID, alignments, model, spec)
}

// Prepare validates the candidate set and aligns each candidate with the series.
//
// Errors (all *domain.SelectionError):
//   - ErrNoCandidates: empty candidate set
//   - ErrDuplicateCandidate: two candidates share a model id
//   - ErrIncomparableCandidates: a candidate failed alignment (Cause holds the alignment error)
func Prepare(series *domain.Series, candidates []*domain.Forecast) ([]*metrics.Alignment, error) {
	if len(candidates) == 0 {
		return nil, &domain.SelectionError{SeriesID: series.ID, Err: domain.ErrNoCandidates}
	}

	seen := make(map[string]struct{}, len(candidates))
	alignments := make([]*metrics.Alignment, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ModelID]; dup {
			return nil, &domain.SelectionError{SeriesID: series.ID, ModelID: c.ModelID, Err: domain.ErrDuplicateCandidate}
		}
		seen[c.ModelID] = struct{}{}

		a, err := metrics.Align(series, c)
		if err != nil {
			return nil, &domain.SelectionError{
				SeriesID: series.ID,
				ModelID:  c.ModelID,
				Err:      domain.ErrIncomparableCandidates,
				Cause:    err,
			}
		}
		alignments = append(alignments, a)
	}
	return alignments, nil
}

// rank scores prepared alignments under one cost model.
func (e *Engine) rank(seriesID string, alignments []*metrics.Alignment, model *cost.Model, spec *domain.ReadinessSpec) (domain.SelectionDecision, []domain.EvaluationResult, error) {
	results := make([]domain.EvaluationResult, len(alignments))
	for i, a := range alignments {
		raw, err := e.metrics.ScoreAlignment(a, model)
		if err != nil {
			return domain.SelectionDecision{}, nil, &domain.SelectionError{
				SeriesID: seriesID,
				ModelID:  a.ModelID,
				Err:      domain.ErrIncomparableCandidates,
				Cause:    err,
			}
		}
		adjusted, penalty, err := e.readiness.Adjust(raw, spec, readiness.Context{LeadTimeMs: a.LeadTimeMs})
		if err != nil {
			return domain.SelectionDecision{}, nil, err
		}
		results[i] = domain.EvaluationResult{
			SeriesID:      seriesID,
			ModelID:       a.ModelID,
			RawScore:      raw,
			AdjustedScore: adjusted,
			Penalty:       penalty,
		}
	}

	SortResults(results)
	for i := range results {
		results[i].Rank = i + 1
	}

	decision := domain.SelectionDecision{
		SeriesID:       seriesID,
		ModelID:        results[0].ModelID,
		CostRatio:      model.Ratio(),
		CandidateCount: len(results),
	}
	if len(results) > 1 {
		decision.RunnerUpID = results[1].ModelID
		decision.Margin = results[1].AdjustedScore - results[0].AdjustedScore
	}
	return decision, results, nil
}

// SortResults orders results by adjusted score ascending, then model id.
func SortResults(results []domain.EvaluationResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].AdjustedScore != results[j].AdjustedScore {
			return results[i].AdjustedScore < results[j].AdjustedScore
		}
		return results[i].ModelID < results[j].ModelID
	})
}
