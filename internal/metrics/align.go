package metrics

import (
	"math"
	"sort"

	"eb-evaluation-lab/internal/domain"
)

// Pair is one aligned (actual, predicted) observation.
type Pair struct {
	TimestampMs int64
	Actual      float64
	Predicted   float64
}

// ErrorProfile holds the sufficient statistics of an alignment.
// Every cost-weighted score and baseline metric is a function of the profile,
// so a cost-ratio sweep never revisits the pairs.
type ErrorProfile struct {
	Count          int     // scorable pairs
	ShortfallCount int     // pairs with actual > predicted
	Shortfall      float64 // Σ max(actual-predicted, 0)
	Overbuild      float64 // Σ max(predicted-actual, 0)
	SquaredError   float64 // Σ (actual-predicted)^2
	ActualSum      float64 // Σ actual
}

// Alignment is the immutable, timestamp-sorted overlap of a series and a forecast.
// Safe for concurrent readers.
type Alignment struct {
	SeriesID   string
	ModelID    string
	LeadTimeMs int64

	pairs   []Pair
	profile ErrorProfile
}

// Align validates a forecast against its series and builds the aligned view.
// Pairs whose actual is NaN (unknown truth) are skipped.
//
// Errors (all *domain.AlignmentError):
//   - ErrMisalignedHorizon: forecast targets another series, a forecast timestamp
//     is not in the series, or a timestamp is duplicated
//   - ErrNonFiniteValue: a prediction is NaN or Inf
//   - ErrEmptyHorizon: no scorable pair remains
func Align(series *domain.Series, forecast *domain.Forecast) (*Alignment, error) {
	fail := func(sentinel error, ts int64, reason string) error {
		return &domain.AlignmentError{
			SeriesID:    series.ID,
			ModelID:     forecast.ModelID,
			TimestampMs: ts,
			Err:         sentinel,
			Reason:      reason,
		}
	}

	if forecast.SeriesID != series.ID {
		return nil, fail(domain.ErrMisalignedHorizon, 0, "forecast targets series "+forecast.SeriesID)
	}

	actuals := make(map[int64]float64, len(series.Points))
	for _, p := range series.Points {
		if _, dup := actuals[p.TimestampMs]; dup {
			return nil, fail(domain.ErrMisalignedHorizon, p.TimestampMs, "duplicate series timestamp")
		}
		actuals[p.TimestampMs] = p.Value
	}

	seen := make(map[int64]struct{}, len(forecast.Points))
	pairs := make([]Pair, 0, len(forecast.Points))
	for _, p := range forecast.Points {
		if _, dup := seen[p.TimestampMs]; dup {
			return nil, fail(domain.ErrMisalignedHorizon, p.TimestampMs, "duplicate forecast timestamp")
		}
		seen[p.TimestampMs] = struct{}{}

		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fail(domain.ErrNonFiniteValue, p.TimestampMs, "prediction is not finite")
		}

		actual, ok := actuals[p.TimestampMs]
		if !ok {
			return nil, fail(domain.ErrMisalignedHorizon, p.TimestampMs, "timestamp not in series")
		}
		if math.IsNaN(actual) {
			continue
		}
		if math.IsInf(actual, 0) {
			return nil, fail(domain.ErrNonFiniteValue, p.TimestampMs, "actual is infinite")
		}
		pairs = append(pairs, Pair{TimestampMs: p.TimestampMs, Actual: actual, Predicted: p.Value})
	}

	if len(pairs) == 0 {
		return nil, fail(domain.ErrEmptyHorizon, 0, "no aligned pair with known actual")
	}

	// Fixed summation order regardless of input order
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].TimestampMs < pairs[j].TimestampMs
	})

	return &Alignment{
		SeriesID:   series.ID,
		ModelID:    forecast.ModelID,
		LeadTimeMs: forecast.LeadTimeMs,
		pairs:      pairs,
		profile:    buildProfile(pairs),
	}, nil
}

func buildProfile(pairs []Pair) ErrorProfile {
	var p ErrorProfile
	for _, pr := range pairs {
		e := pr.Actual - pr.Predicted
		if e > 0 {
			p.Shortfall += e
			p.ShortfallCount++
		} else {
			p.Overbuild += -e
		}
		p.SquaredError += e * e
		p.ActualSum += pr.Actual
		p.Count++
	}
	return p
}

// Len returns the number of scorable pairs.
func (a *Alignment) Len() int { return len(a.pairs) }

// Pair returns the i-th pair in timestamp order.
func (a *Alignment) Pair(i int) Pair { return a.pairs[i] }

// Profile returns the sufficient statistics of the alignment.
func (a *Alignment) Profile() ErrorProfile { return a.profile }
