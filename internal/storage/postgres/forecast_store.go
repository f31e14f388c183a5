package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// ForecastStore implements storage.ForecastStore using PostgreSQL.
type ForecastStore struct {
	pool *Pool
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(pool *Pool) *ForecastStore {
	return &ForecastStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

// Insert adds a new forecast. Returns ErrDuplicateKey if (series_id, model_id) exists.
func (s *ForecastStore) Insert(ctx context.Context, f *domain.Forecast) error {
	return s.InsertBulk(ctx, []*domain.Forecast{f})
}

// InsertBulk adds multiple forecasts atomically. Fails entire batch on any duplicate.
func (s *ForecastStore) InsertBulk(ctx context.Context, forecasts []*domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	for _, f := range forecasts {
		if f == nil || f.SeriesID == "" || f.ModelID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, f := range forecasts {
		if err := insertForecast(ctx, tx, f); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertForecast(ctx context.Context, tx pgx.Tx, f *domain.Forecast) error {
	query := `
		INSERT INTO forecasts (series_id, model_id, lead_time_ms)
		VALUES ($1, $2, $3)
	`

	if _, err := tx.Exec(ctx, query, f.SeriesID, f.ModelID, f.LeadTimeMs); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert forecast: %w", err)
	}

	if len(f.Points) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"forecast_points"},
		[]string{"series_id", "model_id", "timestamp_ms", "value"},
		pgx.CopyFromSlice(len(f.Points), func(i int) ([]any, error) {
			return []any{f.SeriesID, f.ModelID, f.Points[i].TimestampMs, f.Points[i].Value}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy forecast points: %w", err)
	}
	return nil
}

// GetBySeriesID retrieves all forecasts for a series, ordered by model_id ASC.
func (s *ForecastStore) GetBySeriesID(ctx context.Context, seriesID string) ([]*domain.Forecast, error) {
	query := `
		SELECT f.model_id, f.lead_time_ms, p.timestamp_ms, p.value
		FROM forecasts f
		LEFT JOIN forecast_points p
			ON p.series_id = f.series_id AND p.model_id = f.model_id
		WHERE f.series_id = $1
		ORDER BY f.model_id ASC, p.timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("get forecasts by series id: %w", err)
	}
	defer rows.Close()

	return scanForecasts(rows, seriesID)
}

// scanForecasts folds joined (model, point) rows into forecasts.
// A forecast without points yields one row with NULL point columns.
func scanForecasts(rows pgx.Rows, seriesID string) ([]*domain.Forecast, error) {
	var forecasts []*domain.Forecast
	var current *domain.Forecast

	for rows.Next() {
		var (
			modelID   string
			leadTime  int64
			timestamp *int64
			value     *float64
		)
		if err := rows.Scan(&modelID, &leadTime, &timestamp, &value); err != nil {
			return nil, fmt.Errorf("scan forecast row: %w", err)
		}

		if current == nil || current.ModelID != modelID {
			current = &domain.Forecast{SeriesID: seriesID, ModelID: modelID, LeadTimeMs: leadTime}
			forecasts = append(forecasts, current)
		}
		if timestamp != nil && value != nil {
			current.Points = append(current.Points, domain.Point{TimestampMs: *timestamp, Value: *value})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast rows: %w", err)
	}

	return forecasts, nil
}
