package storage

import (
	"context"

	"eb-evaluation-lab/internal/domain"
)

// SeriesStore provides access to series and series_points storage.
type SeriesStore interface {
	// Insert adds a new series with its points. Returns ErrDuplicateKey if series id exists.
	Insert(ctx context.Context, s *domain.Series) error

	// GetByID retrieves a series with points ordered by timestamp ASC. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, seriesID string) (*domain.Series, error)

	// ListIDs returns every series id, ordered ASC.
	ListIDs(ctx context.Context) ([]string, error)
}

// ForecastStore provides access to forecasts and forecast_points storage.
type ForecastStore interface {
	// Insert adds a new forecast. Returns ErrDuplicateKey if (series_id, model_id) exists.
	Insert(ctx context.Context, f *domain.Forecast) error

	// InsertBulk adds multiple forecasts atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, forecasts []*domain.Forecast) error

	// GetBySeriesID retrieves all forecasts for a series, ordered by model_id ASC.
	GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.Forecast, error)
}

// HierarchyStore provides access to hierarchy_nodes storage.
type HierarchyStore interface {
	// InsertBulk adds multiple nodes atomically. Fails entire batch on any duplicate node id.
	InsertBulk(ctx context.Context, nodes []domain.HierarchyNode) error

	// GetAll retrieves every node ordered by id ASC, series ids ordered ASC.
	GetAll(ctx context.Context) ([]domain.HierarchyNode, error)
}

// EvaluationStore provides access to evaluation_results storage.
type EvaluationStore interface {
	// InsertBulk adds results for a run. Fails entire batch on duplicate (run_id, series_id, model_id).
	InsertBulk(ctx context.Context, runID string, results []domain.EvaluationResult) error

	// GetByRun retrieves results for a run, ordered by series_id, rank.
	GetByRun(ctx context.Context, runID string) ([]domain.EvaluationResult, error)
}

// DecisionStore provides access to selection_decisions storage.
// Final decisions and sweep steps live side by side, keyed by kind.
type DecisionStore interface {
	// InsertBulk adds final decisions for a run. Fails on duplicate (run_id, series_id).
	InsertBulk(ctx context.Context, runID string, decisions []domain.SelectionDecision) error

	// InsertSweep adds the sweep decisions of one series in step order.
	// Fails on duplicate (run_id, series_id, step).
	InsertSweep(ctx context.Context, runID, seriesID string, steps []domain.SelectionDecision) error

	// GetByRun retrieves final decisions for a run, ordered by series_id.
	GetByRun(ctx context.Context, runID string) ([]domain.SelectionDecision, error)

	// GetSweep retrieves the sweep decisions of one series, ordered by step.
	GetSweep(ctx context.Context, runID, seriesID string) ([]domain.SelectionDecision, error)
}

// GroupDecisionStore provides access to group_decisions storage.
type GroupDecisionStore interface {
	// InsertBulk adds group decisions for a run. Fails on duplicate (run_id, node_id).
	InsertBulk(ctx context.Context, runID string, decisions []domain.GroupDecision) error

	// GetByRun retrieves group decisions for a run, ordered by node_id.
	GetByRun(ctx context.Context, runID string) ([]domain.GroupDecision, error)
}

// SummaryStore provides access to robustness_summaries storage.
type SummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if (run_id, baseline) exists.
	Insert(ctx context.Context, runID string, s *domain.RobustnessSummary) error

	// GetByRun retrieves the summaries of a run, ordered by baseline.
	GetByRun(ctx context.Context, runID string) ([]*domain.RobustnessSummary, error)
}
