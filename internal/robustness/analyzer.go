// Package robustness compares Electric Barometer rankings against a symmetric
// baseline metric across a population of series.
package robustness

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/metrics"
	"eb-evaluation-lab/internal/selection"
)

// ErrMissingAlignment is recorded when a scored model has no alignment to compute
// the baseline from.
var ErrMissingAlignment = errors.New("missing alignment for scored model")

// SeriesInput is everything known about one series after selection.
type SeriesInput struct {
	SeriesID   string
	Results    []domain.EvaluationResult // EB results, any order
	Alignments []*metrics.Alignment      // one per scored model
	Steps      []selection.SweepStep     // optional cost-ratio sweep
}

// SeriesReport is the per-series comparison.
type SeriesReport struct {
	SeriesID       string
	Models         int
	Pairs          int // comparable model pairs
	Inversions     int
	EBWinner       string
	BaselineWinner string
	Swept          bool
	Stable         bool
}

// InversionRate returns inversions per comparable pair, 0 when there are none.
func (r SeriesReport) InversionRate() float64 {
	if r.Pairs == 0 {
		return 0
	}
	return float64(r.Inversions) / float64(r.Pairs)
}

// Analyzer summarises rank agreement against a baseline metric.
type Analyzer struct {
	Baseline metrics.BaselineMetric
}

// NewAnalyzer creates an analyzer for the given baseline.
func NewAnalyzer(baseline metrics.BaselineMetric) *Analyzer {
	return &Analyzer{Baseline: baseline}
}

// Analyze builds per-series reports sorted by series id.
// Series that cannot be compared are returned as ItemErrors.
func (a *Analyzer) Analyze(inputs []SeriesInput) ([]SeriesReport, []domain.ItemError) {
	sorted := make([]SeriesInput, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SeriesID < sorted[j].SeriesID })

	var (
		reports []SeriesReport
		errs    []domain.ItemError
	)
	for i, in := range sorted {
		if i > 0 && sorted[i-1].SeriesID == in.SeriesID {
			errs = append(errs, domain.ItemError{ID: in.SeriesID, Err: errors.New("duplicate series input")})
			continue
		}
		r, err := a.analyzeSeries(in)
		if err != nil {
			errs = append(errs, domain.ItemError{ID: in.SeriesID, Err: err})
			continue
		}
		reports = append(reports, r)
	}
	return reports, errs
}

func (a *Analyzer) analyzeSeries(in SeriesInput) (SeriesReport, error) {
	if len(in.Results) == 0 {
		return SeriesReport{}, &domain.SelectionError{SeriesID: in.SeriesID, Err: domain.ErrNoCandidates}
	}

	byModel := make(map[string]*metrics.Alignment, len(in.Alignments))
	for _, al := range in.Alignments {
		byModel[al.ModelID] = al
	}

	eb := make(map[string]float64, len(in.Results))
	base := make(map[string]float64, len(in.Results))
	for _, r := range in.Results {
		al, ok := byModel[r.ModelID]
		if !ok {
			return SeriesReport{}, fmt.Errorf("%w: model %s", ErrMissingAlignment, r.ModelID)
		}
		eb[r.ModelID] = r.AdjustedScore
		base[r.ModelID] = a.Baseline.Score(al)
	}

	n := len(eb)
	report := SeriesReport{
		SeriesID:       in.SeriesID,
		Models:         n,
		Pairs:          n * (n - 1) / 2,
		Inversions:     CountInversions(eb, base),
		EBWinner:       winner(eb),
		BaselineWinner: winner(base),
	}
	if len(in.Steps) > 0 {
		report.Swept = true
		report.Stable = selection.Stable(in.Steps)
	}
	return report, nil
}

// Summarize analyzes every series and aggregates the population.
// Input order never changes the result.
func (a *Analyzer) Summarize(inputs []SeriesInput) (*domain.RobustnessSummary, []domain.ItemError) {
	reports, errs := a.Analyze(inputs)
	summary := Aggregate(a.Baseline.Name(), reports)

	minR, maxR := math.Inf(1), math.Inf(-1)
	for _, in := range inputs {
		for _, st := range in.Steps {
			if st.Err != nil {
				continue
			}
			minR = math.Min(minR, st.Ratio)
			maxR = math.Max(maxR, st.Ratio)
		}
	}
	if !math.IsInf(minR, 1) {
		summary.MinRatio, summary.MaxRatio = minR, maxR
	}
	return summary, errs
}

// Aggregate builds the population summary from per-series reports.
// Reports are re-sorted by series id first.
func Aggregate(baseline string, reports []SeriesReport) *domain.RobustnessSummary {
	sorted := make([]SeriesReport, len(reports))
	copy(sorted, reports)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SeriesID < sorted[j].SeriesID })

	s := &domain.RobustnessSummary{
		Baseline:           baseline,
		SeriesCount:        len(sorted),
		InversionHistogram: make(map[int]int),
	}
	if len(sorted) == 0 {
		return s
	}

	counts := make([]float64, 0, len(sorted))
	var (
		rates  []float64
		agreed int
	)
	for _, r := range sorted {
		counts = append(counts, float64(r.Inversions))
		s.InversionHistogram[r.Inversions]++
		if r.Inversions > s.InversionMax {
			s.InversionMax = r.Inversions
		}
		if r.Pairs > 0 {
			rates = append(rates, r.InversionRate())
		}
		if r.EBWinner == r.BaselineWinner {
			agreed++
		}
		if r.Swept {
			s.SweptSeriesCount++
			if r.Stable {
				s.StableSeries++
			}
		}
	}

	d := metrics.Summarize(counts)
	s.InversionMean = d.Mean
	s.InversionP10 = d.P10
	s.InversionP25 = d.P25
	s.InversionMedian = d.Median
	s.InversionP75 = d.P75
	s.InversionP90 = d.P90
	s.InversionRateMean = metrics.Summarize(rates).Mean
	s.TopOneAgreement = float64(agreed) / float64(len(sorted))
	if s.SweptSeriesCount > 0 {
		s.StabilityRate = float64(s.StableSeries) / float64(s.SweptSeriesCount)
	}
	return s
}

// CountInversions counts model pairs ranked in strictly opposite order by a and b.
// Only models scored by both are compared; ties in either metric are not inversions.
// The count is symmetric in its arguments.
func CountInversions(a, b map[string]float64) int {
	var ids []string
	for id := range a {
		if _, ok := b[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	inv := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			da := a[ids[i]] - a[ids[j]]
			db := b[ids[i]] - b[ids[j]]
			if (da < 0 && db > 0) || (da > 0 && db < 0) {
				inv++
			}
		}
	}
	return inv
}

// winner returns the lowest-scoring model, ties to the smallest id.
func winner(scores map[string]float64) string {
	best := ""
	for id, s := range scores {
		if best == "" || s < scores[best] || (s == scores[best] && id < best) {
			best = id
		}
	}
	return best
}
