package memory

import (
	"context"
	"errors"
	"testing"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

func TestSummaryStore_InsertAndGet(t *testing.T) {
	store := NewSummaryStore()
	ctx := context.Background()

	rmse := &domain.RobustnessSummary{
		Baseline:           "rmse",
		SeriesCount:        4,
		InversionMean:      0.75,
		InversionMax:       1,
		InversionHistogram: map[int]int{0: 1, 1: 3},
		TopOneAgreement:    0.25,
	}
	mae := &domain.RobustnessSummary{Baseline: "mae", SeriesCount: 4}

	if err := store.Insert(ctx, "run1", rmse); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, "run1", mae); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 2 || got[0].Baseline != "mae" || got[1].Baseline != "rmse" {
		t.Fatalf("Unexpected summaries: %+v", got)
	}
	if got[1].InversionHistogram[1] != 3 {
		t.Errorf("Histogram lost: %v", got[1].InversionHistogram)
	}

	if err := store.Insert(ctx, "run1", rmse); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, "run1", &domain.RobustnessSummary{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
