package selection

import (
	"iter"

	"eb-evaluation-lab/internal/cost"
	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/metrics"
	"eb-evaluation-lab/internal/readiness"
)

// SweepStep is the decision at one cost ratio of a sweep.
// Err is set when the ratio is not a valid cost spec; Decision is then zero.
type SweepStep struct {
	Index    int
	Ratio    float64
	Decision domain.SelectionDecision
	Err      error
}

// Sweep is a lazy, finite, restartable sequence of decisions over cost ratios.
// Alignments are built once; each step re-weights the cached error profiles.
// Not safe for concurrent use; use All for independent passes.
type Sweep struct {
	engine     *Engine
	seriesID   string
	alignments []*metrics.Alignment
	ratios     []float64
	spec       *domain.ReadinessSpec
	pos        int
}

// Sweep prepares a sweep of series over ratios (cu/co with co = 1).
// Candidate and readiness validation happen here, so steps can only fail on bad ratios.
func (e *Engine) Sweep(series *domain.Series, candidates []*domain.Forecast, ratios []float64, spec *domain.ReadinessSpec) (*Sweep, error) {
	if err := readiness.Validate(spec); err != nil {
		return nil, err
	}
	alignments, err := Prepare(series, candidates)
	if err != nil {
		return nil, err
	}
	rs := make([]float64, len(ratios))
	copy(rs, ratios)
	return &Sweep{
		engine:     e,
		seriesID:   series.ID,
		alignments: alignments,
		ratios:     rs,
		spec:       spec,
	}, nil
}

// SeriesID returns the swept series id.
func (s *Sweep) SeriesID() string { return s.seriesID }

// Len returns the number of ratios.
func (s *Sweep) Len() int { return len(s.ratios) }

// Alignments returns the prepared alignments in candidate order.
func (s *Sweep) Alignments() []*metrics.Alignment { return s.alignments }

// Next computes the next step. Returns false once every ratio has been consumed.
func (s *Sweep) Next() (SweepStep, bool) {
	if s.pos >= len(s.ratios) {
		return SweepStep{}, false
	}
	step := s.step(s.pos)
	s.pos++
	return step, true
}

// Reset restarts the sweep from the first ratio.
func (s *Sweep) Reset() { s.pos = 0 }

// All returns an independent pass over every step. It does not move the Next cursor.
func (s *Sweep) All() iter.Seq2[int, SweepStep] {
	return func(yield func(int, SweepStep) bool) {
		for i := range s.ratios {
			if !yield(i, s.step(i)) {
				return
			}
		}
	}
}

// Collect materialises every step.
func (s *Sweep) Collect() []SweepStep {
	steps := make([]SweepStep, 0, len(s.ratios))
	for _, st := range s.All() {
		steps = append(steps, st)
	}
	return steps
}

func (s *Sweep) step(i int) SweepStep {
	ratio := s.ratios[i]
	step := SweepStep{Index: i, Ratio: ratio}

	model, err := cost.FromRatio(ratio)
	if err != nil {
		step.Err = err
		return step
	}
	decision, _, err := s.engine.rank(s.seriesID, s.alignments, model, s.spec)
	if err != nil {
		step.Err = err
		return step
	}
	step.Decision = decision
	return step
}

// Boundary is a change of chosen model between two adjacent successful steps.
type Boundary struct {
	LowerRatio float64
	UpperRatio float64
	From       string
	To         string
}

// Boundaries reports every adjacent pair of successful steps whose chosen model differs.
// Failed steps are skipped; the boundary spans the nearest successful neighbours.
func Boundaries(steps []SweepStep) []Boundary {
	var out []Boundary
	var prev *SweepStep
	for i := range steps {
		st := &steps[i]
		if st.Err != nil {
			continue
		}
		if prev != nil && prev.Decision.ModelID != st.Decision.ModelID {
			out = append(out, Boundary{
				LowerRatio: prev.Ratio,
				UpperRatio: st.Ratio,
				From:       prev.Decision.ModelID,
				To:         st.Decision.ModelID,
			})
		}
		prev = st
	}
	return out
}

// FirstBoundary consumes steps lazily and stops at the first boundary.
func FirstBoundary(steps iter.Seq2[int, SweepStep]) (Boundary, bool) {
	var (
		prev    SweepStep
		hasPrev bool
	)
	for _, st := range steps {
		if st.Err != nil {
			continue
		}
		if hasPrev && prev.Decision.ModelID != st.Decision.ModelID {
			return Boundary{
				LowerRatio: prev.Ratio,
				UpperRatio: st.Ratio,
				From:       prev.Decision.ModelID,
				To:         st.Decision.ModelID,
			}, true
		}
		prev, hasPrev = st, true
	}
	return Boundary{}, false
}

// Stable reports whether every successful step chose the same model.
// A sweep with no successful step is not stable.
func Stable(steps []SweepStep) bool {
	chosen := ""
	for _, st := range steps {
		if st.Err != nil {
			continue
		}
		if chosen == "" {
			chosen = st.Decision.ModelID
			continue
		}
		if st.Decision.ModelID != chosen {
			return false
		}
	}
	return chosen != ""
}
