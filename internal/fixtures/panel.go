// Package fixtures generates the deterministic demo panel used by the binaries and
// end-to-end tests: a few store/item series on 30-minute intervals, three candidate
// models with known biases, and the site hierarchy derived from the entity ids.
package fixtures

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"eb-evaluation-lab/internal/domain"
)

const (
	msPerMinute = 60_000
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Model ids of the demo candidates.
const (
	ModelSeasonalNaive = "seasonal_naive"
	ModelUnderBiased   = "under_biased"
	ModelOverBiased    = "over_biased"
)

// Entity is one forecastable item sold at every store.
type Entity struct {
	ID    string
	Name  string
	Scale float64 // peak demand per interval at a full-scale store
}

// Config describes the demo panel.
type Config struct {
	Seed            uint64
	Stores          []string
	StoreScales     map[string]float64 // missing stores scale 1
	Entities        []Entity
	StartMs         int64 // first business day, Unix ms at midnight UTC
	HistoryDays     int
	FutureDays      int
	IntervalsPerDay int
	OpenStart       int     // first open interval of the day
	OpenEnd         int     // first closed interval after opening
	PMissing        float64 // probability a past open interval is unobserved
}

// DefaultConfig returns the golden demo: two stores, two items, seven days of
// history and seven days of future scaffold at 30-minute resolution.
func DefaultConfig() Config {
	return Config{
		Seed:        7,
		Stores:      []string{"0001", "0002"},
		StoreScales: map[string]float64{"0001": 1.00, "0002": 0.85},
		Entities: []Entity{
			{ID: "100", Name: "BEEF_PATTY", Scale: 40},
			{ID: "200", Name: "CHICKEN_STRIPS", Scale: 14},
		},
		StartMs:         1767225600000, // 2026-01-01 00:00:00 UTC
		HistoryDays:     7,
		FutureDays:      7,
		IntervalsPerDay: 48,
		OpenStart:       12,
		OpenEnd:         46,
		PMissing:        0.01,
	}
}

// Panel is a generated demo dataset.
type Panel struct {
	Series    []*domain.Series    // sorted by id
	Forecasts []*domain.Forecast  // sorted by series id, model id
	Hierarchy []domain.HierarchyNode
}

// SeriesIDs returns the ids of all series in order.
func (p *Panel) SeriesIDs() []string {
	ids := make([]string, len(p.Series))
	for i, s := range p.Series {
		ids[i] = s.ID
	}
	return ids
}

// ForecastsFor returns the candidate forecasts of one series.
func (p *Panel) ForecastsFor(seriesID string) []*domain.Forecast {
	var out []*domain.Forecast
	for _, f := range p.Forecasts {
		if f.SeriesID == seriesID {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks the config dimensions.
func (c Config) Validate() error {
	switch {
	case len(c.Stores) == 0 || len(c.Entities) == 0:
		return fmt.Errorf("%w: panel needs at least one store and one entity", domain.ErrInvalidConfig)
	case c.HistoryDays < 2:
		return fmt.Errorf("%w: panel needs at least two history days", domain.ErrInvalidConfig)
	case c.FutureDays < 0:
		return fmt.Errorf("%w: negative future days", domain.ErrInvalidConfig)
	case c.IntervalsPerDay <= 0 || msPerDay%c.IntervalsPerDay != 0:
		return fmt.Errorf("%w: intervals per day must divide a day", domain.ErrInvalidConfig)
	case c.OpenStart < 0 || c.OpenEnd > c.IntervalsPerDay || c.OpenStart >= c.OpenEnd:
		return fmt.Errorf("%w: open window [%d, %d) outside the day", domain.ErrInvalidConfig, c.OpenStart, c.OpenEnd)
	case c.PMissing < 0 || c.PMissing >= 1:
		return fmt.Errorf("%w: missing probability must be in [0, 1)", domain.ErrInvalidConfig)
	}
	return nil
}

// Generate builds the panel. Equal configs give identical panels.
func Generate(cfg Config) (*Panel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	panel := &Panel{}

	stores := append([]string(nil), cfg.Stores...)
	sort.Strings(stores)
	entities := append([]Entity(nil), cfg.Entities...)
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	for _, store := range stores {
		for _, entity := range entities {
			series := generateSeries(cfg, rng, store, entity)
			panel.Series = append(panel.Series, series)
			panel.Forecasts = append(panel.Forecasts, generateForecasts(cfg, series)...)
		}
	}

	hierarchy, err := HierarchyFromEntityIDs(panel.SeriesIDs())
	if err != nil {
		return nil, err
	}
	panel.Hierarchy = hierarchy
	return panel, nil
}

// generateSeries draws demand for one store/item. Closed intervals are structural
// zeros; future days and rare unobserved past intervals carry NaN.
func generateSeries(cfg Config, rng *rand.Rand, store string, entity Entity) *domain.Series {
	stepMs := int64(msPerDay / cfg.IntervalsPerDay)
	storeScale, ok := cfg.StoreScales[store]
	if !ok {
		storeScale = 1
	}

	series := &domain.Series{ID: store + domain.EntitySeparator + entity.ID}
	days := cfg.HistoryDays + cfg.FutureDays

	for day := 0; day < days; day++ {
		future := day >= cfg.HistoryDays
		for k := 0; k < cfg.IntervalsPerDay; k++ {
			ts := cfg.StartMs + int64(day)*msPerDay + int64(k)*stepMs
			open := k >= cfg.OpenStart && k < cfg.OpenEnd

			value := 0.0
			switch {
			case !open:
				// structural zero, known even in the future
			case future:
				value = math.NaN()
			default:
				observed := rng.Float64() >= cfg.PMissing
				mu := demandShape(k, cfg.IntervalsPerDay) * entity.Scale * storeScale
				v := mu + rng.NormFloat64()*0.15*mu
				if entity.Scale < 20 && rng.Float64() < 0.02 {
					v += (0.8 + 0.8*rng.Float64()) * mu // rare demand spike on small items
				}
				value = math.Round(math.Max(0, v))
				if !observed {
					value = math.NaN()
				}
			}

			series.Points = append(series.Points, domain.Point{TimestampMs: ts, Value: value})
		}
	}
	return series
}

// demandShape is a smooth daily profile with lunch and dinner peaks.
func demandShape(k, intervalsPerDay int) float64 {
	t := float64(k) / float64(intervalsPerDay)
	lunch := math.Exp(-math.Pow((t-0.50)/0.08, 2))
	dinner := math.Exp(-math.Pow((t-0.75)/0.10, 2))
	return 0.10 + lunch + 1.2*dinner
}

// generateForecasts derives the three candidates from the day-lagged truth.
// A candidate covers every interval whose lagged truth is known, so future
// intervals are forecast but never scored until their truth arrives.
func generateForecasts(cfg Config, series *domain.Series) []*domain.Forecast {
	lag := cfg.IntervalsPerDay

	naive := &domain.Forecast{SeriesID: series.ID, ModelID: ModelSeasonalNaive, LeadTimeMs: msPerDay}
	under := &domain.Forecast{SeriesID: series.ID, ModelID: ModelUnderBiased, LeadTimeMs: 6 * msPerHour}
	over := &domain.Forecast{SeriesID: series.ID, ModelID: ModelOverBiased, LeadTimeMs: 2 * msPerDay}

	for i := lag; i < len(series.Points); i++ {
		prev := series.Points[i-lag].Value
		if math.IsNaN(prev) {
			continue
		}
		ts := series.Points[i].TimestampMs
		naive.Points = append(naive.Points, domain.Point{TimestampMs: ts, Value: prev})
		under.Points = append(under.Points, domain.Point{TimestampMs: ts, Value: math.Floor(0.85 * prev)})
		over.Points = append(over.Points, domain.Point{TimestampMs: ts, Value: math.Ceil(1.15*prev) + boolToFloat(prev > 0)})
	}

	// Sorted by model id
	return []*domain.Forecast{over, naive, under}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
