package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/storage"
)

// SeriesStore implements storage.SeriesStore using PostgreSQL.
type SeriesStore struct {
	pool *Pool
}

// NewSeriesStore creates a new SeriesStore.
func NewSeriesStore(pool *Pool) *SeriesStore {
	return &SeriesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SeriesStore = (*SeriesStore)(nil)

// Insert adds a new series with its points. Returns ErrDuplicateKey if the series id exists.
func (s *SeriesStore) Insert(ctx context.Context, series *domain.Series) error {
	if series == nil || series.ID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO series (series_id) VALUES ($1)`, series.ID); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert series: %w", err)
	}

	if len(series.Points) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"series_points"},
			[]string{"series_id", "timestamp_ms", "value"},
			pgx.CopyFromSlice(len(series.Points), func(i int) ([]any, error) {
				p := series.Points[i]
				return []any{series.ID, p.TimestampMs, nullableValue(p.Value)}, nil
			}),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("copy series points: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a series with points ordered by timestamp ASC. Returns ErrNotFound if not exists.
func (s *SeriesStore) GetByID(ctx context.Context, seriesID string) (*domain.Series, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT series_id FROM series WHERE series_id = $1`, seriesID).Scan(&id)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get series by id: %w", err)
	}

	query := `
		SELECT timestamp_ms, value
		FROM series_points
		WHERE series_id = $1
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("get series points: %w", err)
	}
	defer rows.Close()

	points, err := scanPoints(rows)
	if err != nil {
		return nil, err
	}
	return &domain.Series{ID: id, Points: points}, nil
}

// ListIDs returns every series id, ordered ASC.
func (s *SeriesStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT series_id FROM series ORDER BY series_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list series ids: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect series ids: %w", err)
	}
	return ids, nil
}

// scanPoints scans (timestamp_ms, value) rows. NULL values become NaN.
func scanPoints(rows pgx.Rows) ([]domain.Point, error) {
	var points []domain.Point

	for rows.Next() {
		var (
			p     domain.Point
			value *float64
		)
		if err := rows.Scan(&p.TimestampMs, &value); err != nil {
			return nil, fmt.Errorf("scan point row: %w", err)
		}
		p.Value = valueOrNaN(value)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate point rows: %w", err)
	}

	return points, nil
}
