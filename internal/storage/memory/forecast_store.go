package memory

import (
	"context"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// forecastKey is the composite primary key (series_id, model_id).
type forecastKey struct {
	seriesID string
	modelID  string
}

// ForecastStore is an in-memory implementation of storage.ForecastStore.
type ForecastStore struct {
	mu   sync.RWMutex
	data map[forecastKey]*domain.Forecast
}

// NewForecastStore creates a new in-memory forecast store.
func NewForecastStore() *ForecastStore {
	return &ForecastStore{
		data: make(map[forecastKey]*domain.Forecast),
	}
}

// Insert adds a new forecast. Returns ErrDuplicateKey if (series_id, model_id) exists.
func (s *ForecastStore) Insert(_ context.Context, f *domain.Forecast) error {
	if f == nil || f.SeriesID == "" || f.ModelID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := forecastKey{f.SeriesID, f.ModelID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copyForecast(f)
	return nil
}

// InsertBulk adds multiple forecasts atomically. Fails entire batch on any duplicate.
func (s *ForecastStore) InsertBulk(_ context.Context, forecasts []*domain.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and check duplicates (existing + intra-batch)
	seen := make(map[forecastKey]bool, len(forecasts))
	for _, f := range forecasts {
		if f == nil || f.SeriesID == "" || f.ModelID == "" {
			return storage.ErrInvalidInput
		}
		key := forecastKey{f.SeriesID, f.ModelID}
		if _, exists := s.data[key]; exists || seen[key] {
			return storage.ErrDuplicateKey
		}
		seen[key] = true
	}

	// Second pass: insert all
	for _, f := range forecasts {
		s.data[forecastKey{f.SeriesID, f.ModelID}] = copyForecast(f)
	}
	return nil
}

// GetBySeriesID retrieves all forecasts for a series, ordered by model_id ASC.
func (s *ForecastStore) GetBySeriesID(_ context.Context, seriesID string) ([]*domain.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Forecast
	for key, f := range s.data {
		if key.seriesID == seriesID {
			result = append(result, copyForecast(f))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ModelID < result[j].ModelID
	})
	return result, nil
}

func copyForecast(in *domain.Forecast) *domain.Forecast {
	out := *in
	out.Points = copyPoints(in.Points)
	return &out
}

// Verify interface compliance at compile time.
var _ storage.ForecastStore = (*ForecastStore)(nil)
