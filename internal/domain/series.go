package domain

import "math"

// Point is one (timestamp, value) observation.
type Point struct {
	TimestampMs int64   // Unix timestamp in milliseconds
	Value       float64 // actual or predicted value
}

// Series is the observed history for one entity.
// Corresponds to series + series_points tables in PostgreSQL.
// A NaN value marks an interval whose truth is not known yet.
type Series struct {
	ID     string  // entity identifier, e.g. "site_01::item_03"
	Points []Point // ordered by TimestampMs ASC
}

// Forecast is one model's prediction for a series.
// Corresponds to forecasts + forecast_points tables in PostgreSQL.
type Forecast struct {
	SeriesID   string  // series this forecast targets
	ModelID    string  // model identifier
	LeadTimeMs int64   // effective lead time of the forecast (issue -> first target)
	Points     []Point // aligned 1:1 with a subset of Series.Points
}

// KnownPoints returns the number of points with known truth.
func (s *Series) KnownPoints() int {
	n := 0
	for _, p := range s.Points {
		if !math.IsNaN(p.Value) {
			n++
		}
	}
	return n
}

// TimeRange returns the first and last timestamps of the series.
// Returns (0, 0) for an empty series.
func (s *Series) TimeRange() (start, end int64) {
	if len(s.Points) == 0 {
		return 0, 0
	}
	start, end = s.Points[0].TimestampMs, s.Points[0].TimestampMs
	for _, p := range s.Points[1:] {
		if p.TimestampMs < start {
			start = p.TimestampMs
		}
		if p.TimestampMs > end {
			end = p.TimestampMs
		}
	}
	return start, end
}
