package postgres

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"eb-evaluation-lab/internal/domain"
)

// panelSchemaDir holds the panel migrations, relative to this package.
var panelSchemaDir = filepath.Join("..", "migrations", "postgres")

// newTestPool starts a disposable PostgreSQL with the panel schema applied.
// The pool and container are released when the test ends. Skipped under -short.
func newTestPool(t *testing.T) *Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("eb_panel"),
		tcpostgres.WithUsername("eb"),
		tcpostgres.WithPassword("eb"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "postgres connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "create pool")
	t.Cleanup(pool.Close)

	applyPanelSchema(t, ctx, pool)
	return pool
}

// applyPanelSchema runs the series, forecast and hierarchy migrations in file order.
// The migrations package cannot be imported here: it depends on this one.
func applyPanelSchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	schema := os.DirFS(panelSchemaDir)
	names, err := fs.Glob(schema, "*.sql")
	require.NoError(t, err, "list panel migrations")
	require.NotEmpty(t, names, "no panel migrations in %s", panelSchemaDir)

	for _, name := range names {
		sql, err := fs.ReadFile(schema, name)
		require.NoError(t, err, "read %s", name)

		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", name)
	}
}

// createTestSeries inserts a series with hourly points and returns its ID.
func createTestSeries(t *testing.T, ctx context.Context, pool *Pool, id string, values ...float64) string {
	t.Helper()

	s := &domain.Series{ID: id}
	for i, v := range values {
		s.Points = append(s.Points, domain.Point{TimestampMs: int64(i+1) * 3600000, Value: v})
	}

	err := NewSeriesStore(pool).Insert(ctx, s)
	require.NoError(t, err)
	return id
}
