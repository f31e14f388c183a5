// Package main applies the PostgreSQL migrations and writes the demo panel.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"eb-evaluation-lab/internal/config"
	"eb-evaluation-lab/internal/fixtures"
	"eb-evaluation-lab/internal/storage"
	"eb-evaluation-lab/internal/storage/migrations"
	pgstore "eb-evaluation-lab/internal/storage/postgres"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.Lshortfile)

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatalf("Failed to read environment: %v", err)
	}

	defaults := fixtures.DefaultConfig()

	// Parse flags
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	seed := flag.Uint64("seed", defaults.Seed, "Demo panel seed")
	historyDays := flag.Int("history-days", defaults.HistoryDays, "Days with known truth")
	futureDays := flag.Int("future-days", defaults.FutureDays, "Days with unknown truth")
	migrateOnly := flag.Bool("migrate-only", false, "Apply migrations without writing the panel")

	flag.Parse()

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	// Create context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}
	logger.Printf("Applied %d migrations %v", len(applied), applied)

	if *migrateOnly {
		return
	}

	panelCfg := defaults
	panelCfg.Seed = *seed
	panelCfg.HistoryDays = *historyDays
	panelCfg.FutureDays = *futureDays

	panel, err := fixtures.Generate(panelCfg)
	if err != nil {
		logger.Fatalf("Failed to generate panel: %v", err)
	}

	err = fixtures.Load(ctx, panel,
		pgstore.NewSeriesStore(pool),
		pgstore.NewForecastStore(pool),
		pgstore.NewHierarchyStore(pool),
	)
	if errors.Is(err, storage.ErrDuplicateKey) {
		logger.Println("Panel already seeded, nothing to do")
		return
	}
	if err != nil {
		logger.Fatalf("Failed to load panel: %v", err)
	}

	logger.Printf("Seeded %d series, %d forecasts, %d hierarchy nodes",
		len(panel.Series), len(panel.Forecasts), len(panel.Hierarchy))
}
