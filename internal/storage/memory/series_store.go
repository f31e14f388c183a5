package memory

import (
	"context"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// SeriesStore is an in-memory implementation of storage.SeriesStore.
type SeriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Series // keyed by series id
}

// NewSeriesStore creates a new in-memory series store.
func NewSeriesStore() *SeriesStore {
	return &SeriesStore{
		data: make(map[string]*domain.Series),
	}
}

// Insert adds a new series. Returns ErrDuplicateKey if the series id exists.
func (s *SeriesStore) Insert(_ context.Context, series *domain.Series) error {
	if series == nil || series.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[series.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[series.ID] = copySeries(series)
	return nil
}

// GetByID retrieves a series with points ordered by timestamp ASC.
func (s *SeriesStore) GetByID(_ context.Context, seriesID string) (*domain.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, exists := s.data[seriesID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySeries(series), nil
}

// ListIDs returns every series id, ordered ASC.
func (s *SeriesStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// copySeries returns a deep copy with points sorted by timestamp.
func copySeries(in *domain.Series) *domain.Series {
	return &domain.Series{ID: in.ID, Points: copyPoints(in.Points)}
}

func copyPoints(in []domain.Point) []domain.Point {
	out := make([]domain.Point, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out
}

// Verify interface compliance at compile time.
var _ storage.SeriesStore = (*SeriesStore)(nil)
