package fixtures

import (
	"context"
	"fmt"

	"eb-evaluation-lab/internal/storage"
)

// Load writes the panel into the given stores: series first, then forecasts, then
// the hierarchy. Stores are append-only, so loading the same panel twice fails
// with storage.ErrDuplicateKey.
func Load(
	ctx context.Context,
	panel *Panel,
	seriesStore storage.SeriesStore,
	forecastStore storage.ForecastStore,
	hierarchyStore storage.HierarchyStore,
) error {
	for _, s := range panel.Series {
		if err := seriesStore.Insert(ctx, s); err != nil {
			return fmt.Errorf("load series %s: %w", s.ID, err)
		}
	}

	if err := forecastStore.InsertBulk(ctx, panel.Forecasts); err != nil {
		return fmt.Errorf("load forecasts: %w", err)
	}

	if err := hierarchyStore.InsertBulk(ctx, panel.Hierarchy); err != nil {
		return fmt.Errorf("load hierarchy: %w", err)
	}

	return nil
}
