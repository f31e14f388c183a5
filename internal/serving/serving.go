// Package serving resolves the forecast actually served per series.
// The selected model is served when the gate admits it; otherwise the
// configured baseline model is served and the fallback is traced per series.
package serving

import (
	"fmt"
	"math"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
)

// Served sources.
const (
	SourceSelected   = "selected"
	SourceBaseline   = "baseline"
	SourceUnadmitted = "selected_unadmitted" // rejected, and no baseline forecast to fall back to
)

// Point is one served interval. Selected and Baseline are NaN when that
// forecast has no value at the timestamp.
type Point struct {
	TimestampMs int64
	Served      float64
	Selected    float64
	Baseline    float64
}

// Forecast is the served forecast of one series.
type Forecast struct {
	SeriesID        string
	EntityID        string
	SelectedModelID string // empty when selection failed
	ServedModelID   string
	Source          string
	Admitted        bool // the selected model passed the gate
	Points          []Point
}

// Input is one series to serve.
type Input struct {
	SeriesID   string
	Selected   string // selected model id, empty when selection failed
	Candidates []*domain.Forecast
}

// Resolver decides what each series serves.
type Resolver struct {
	baseline string
	gated    bool
	rejected map[string]bool // "series\x00model"
}

// NewResolver creates a resolver. Without a gate every selection is admitted.
func NewResolver(baselineModel string, gated bool, decisions []governance.Decision) *Resolver {
	r := &Resolver{baseline: baselineModel, gated: gated, rejected: make(map[string]bool)}
	for _, d := range decisions {
		if !d.Admitted {
			r.rejected[d.SeriesID+"\x00"+d.ModelID] = true
		}
	}
	return r
}

// Serve resolves one series.
func (r *Resolver) Serve(in Input) (*Forecast, error) {
	selected := find(in.Candidates, in.Selected)
	baseline := find(in.Candidates, r.baseline)

	out := &Forecast{
		SeriesID:        in.SeriesID,
		EntityID:        entityID(in.SeriesID),
		SelectedModelID: in.Selected,
		Admitted:        selected != nil && !(r.gated && r.rejected[in.SeriesID+"\x00"+in.Selected]),
	}

	var served *domain.Forecast
	switch {
	case out.Admitted:
		served, out.Source = selected, SourceSelected
	case baseline != nil:
		served, out.Source = baseline, SourceBaseline
	case selected != nil:
		served, out.Source = selected, SourceUnadmitted
	default:
		return nil, fmt.Errorf("%w: nothing to serve for series %s", domain.ErrNoCandidates, in.SeriesID)
	}
	out.ServedModelID = served.ModelID

	sel, base := values(selected), values(baseline)
	out.Points = make([]Point, len(served.Points))
	for i, p := range served.Points {
		out.Points[i] = Point{
			TimestampMs: p.TimestampMs,
			Served:      p.Value,
			Selected:    lookup(sel, p.TimestampMs),
			Baseline:    lookup(base, p.TimestampMs),
		}
	}
	return out, nil
}

// ServeAll resolves every input in order. Failed series become item errors.
func (r *Resolver) ServeAll(inputs []Input) ([]*Forecast, []domain.ItemError) {
	var (
		out  []*Forecast
		errs []domain.ItemError
	)
	for _, in := range inputs {
		f, err := r.Serve(in)
		if err != nil {
			errs = append(errs, domain.ItemError{ID: in.SeriesID, Err: err})
			continue
		}
		out = append(out, f)
	}
	return out, errs
}

// Counts returns served series per source.
func Counts(forecasts []*Forecast) map[string]int {
	counts := make(map[string]int)
	for _, f := range forecasts {
		counts[f.Source]++
	}
	return counts
}

func find(candidates []*domain.Forecast, modelID string) *domain.Forecast {
	if modelID == "" {
		return nil
	}
	for _, c := range candidates {
		if c.ModelID == modelID {
			return c
		}
	}
	return nil
}

func values(f *domain.Forecast) map[int64]float64 {
	if f == nil {
		return nil
	}
	m := make(map[int64]float64, len(f.Points))
	for _, p := range f.Points {
		m[p.TimestampMs] = p.Value
	}
	return m
}

func lookup(m map[int64]float64, ts int64) float64 {
	if v, ok := m[ts]; ok {
		return v
	}
	return math.NaN()
}

func entityID(seriesID string) string {
	if _, item, ok := domain.SplitEntityID(seriesID); ok {
		return item
	}
	return seriesID
}
