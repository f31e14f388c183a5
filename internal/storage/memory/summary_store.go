package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// summaryKey is the composite primary key (run_id, baseline).
type summaryKey struct {
	runID    string
	baseline string
}

// SummaryStore is an in-memory implementation of storage.SummaryStore.
type SummaryStore struct {
	mu   sync.RWMutex
	data map[summaryKey]*domain.RobustnessSummary
}

// NewSummaryStore creates a new in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		data: make(map[summaryKey]*domain.RobustnessSummary),
	}
}

// Insert adds a summary. Returns ErrDuplicateKey if (run_id, baseline) exists.
func (s *SummaryStore) Insert(_ context.Context, runID string, summary *domain.RobustnessSummary) error {
	if runID == "" || summary == nil || summary.Baseline == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryKey{runID, summary.Baseline}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copySummary(summary)
	return nil
}

// GetByRun retrieves the summaries of a run, ordered by baseline.
func (s *SummaryStore) GetByRun(_ context.Context, runID string) ([]*domain.RobustnessSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RobustnessSummary
	for key, summary := range s.data {
		if key.runID == runID {
			result = append(result, copySummary(summary))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Baseline < result[j].Baseline
	})
	return result, nil
}

func copySummary(in *domain.RobustnessSummary) *domain.RobustnessSummary {
	out := *in
	out.InversionHistogram = maps.Clone(in.InversionHistogram)
	return &out
}

// Verify interface compliance at compile time.
var _ storage.SummaryStore = (*SummaryStore)(nil)
