package serving

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
)

func forecast(seriesID, modelID string, values ...float64) *domain.Forecast {
	f := &domain.Forecast{SeriesID: seriesID, ModelID: modelID}
	for i, v := range values {
		f.Points = append(f.Points, domain.Point{TimestampMs: int64(i + 1), Value: v})
	}
	return f
}

func candidates(seriesID string) []*domain.Forecast {
	return []*domain.Forecast{
		forecast(seriesID, "over", 12, 13, 14),
		forecast(seriesID, "seasonal_naive", 10, 10),
	}
}

func TestServe_Ungated(t *testing.T) {
	r := NewResolver("seasonal_naive", false, []governance.Decision{
		{SeriesID: "0001::100", ModelID: "over", Admitted: false},
	})

	f, err := r.Serve(Input{SeriesID: "0001::100", Selected: "over", Candidates: candidates("0001::100")})
	require.NoError(t, err)

	assert.Equal(t, SourceSelected, f.Source)
	assert.Equal(t, "over", f.ServedModelID)
	assert.Equal(t, "100", f.EntityID)
	assert.True(t, f.Admitted)
	require.Len(t, f.Points, 3)
	assert.Equal(t, 12.0, f.Points[0].Served)
	assert.Equal(t, 10.0, f.Points[0].Baseline)
	assert.True(t, math.IsNaN(f.Points[2].Baseline), "baseline has no third interval")
}

func TestServe_RejectedFallsBackToBaseline(t *testing.T) {
	r := NewResolver("seasonal_naive", true, []governance.Decision{
		{SeriesID: "0001::100", ModelID: "over", Admitted: false},
		{SeriesID: "0001::100", ModelID: "seasonal_naive", Admitted: true},
	})

	f, err := r.Serve(Input{SeriesID: "0001::100", Selected: "over", Candidates: candidates("0001::100")})
	require.NoError(t, err)

	assert.Equal(t, SourceBaseline, f.Source)
	assert.Equal(t, "seasonal_naive", f.ServedModelID)
	assert.Equal(t, "over", f.SelectedModelID)
	assert.False(t, f.Admitted)
	require.Len(t, f.Points, 2)
	assert.Equal(t, 10.0, f.Points[1].Served)
	assert.Equal(t, 13.0, f.Points[1].Selected)
}

func TestServe_RejectedWithoutBaseline(t *testing.T) {
	r := NewResolver("missing", true, []governance.Decision{
		{SeriesID: "s", ModelID: "over", Admitted: false},
	})

	f, err := r.Serve(Input{SeriesID: "s", Selected: "over", Candidates: candidates("s")})
	require.NoError(t, err)

	assert.Equal(t, SourceUnadmitted, f.Source)
	assert.Equal(t, "over", f.ServedModelID)
	assert.Equal(t, "s", f.EntityID)
}

func TestServe_NoSelection(t *testing.T) {
	r := NewResolver("seasonal_naive", true, nil)

	f, err := r.Serve(Input{SeriesID: "s", Candidates: candidates("s")})
	require.NoError(t, err)
	assert.Equal(t, SourceBaseline, f.Source)
	assert.Empty(t, f.SelectedModelID)
	assert.True(t, math.IsNaN(f.Points[0].Selected))

	_, err = NewResolver("missing", true, nil).Serve(Input{SeriesID: "s", Candidates: candidates("s")})
	assert.True(t, errors.Is(err, domain.ErrNoCandidates))
}

func TestServeAll(t *testing.T) {
	r := NewResolver("seasonal_naive", true, []governance.Decision{
		{SeriesID: "b", ModelID: "over", Admitted: false},
	})

	served, errs := r.ServeAll([]Input{
		{SeriesID: "a", Selected: "over", Candidates: candidates("a")},
		{SeriesID: "b", Selected: "over", Candidates: candidates("b")},
		{SeriesID: "c"},
	})

	require.Len(t, served, 2)
	assert.Equal(t, "a", served[0].SeriesID)
	assert.Equal(t, "b", served[1].SeriesID)
	require.Len(t, errs, 1)
	assert.Equal(t, "c", errs[0].ID)
	assert.Equal(t, map[string]int{SourceSelected: 1, SourceBaseline: 1}, Counts(served))
}
