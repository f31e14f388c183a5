// Package main provides the evaluation server:
// - Evaluation (scheduled): load → select/sweep → hierarchy → robustness → reports
// - HTTP: /health, /metrics, /status
// - WebSocket: /ws/sweep streams a cost-ratio sweep for one series
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"eb-evaluation-lab/internal/config"
	"eb-evaluation-lab/internal/fixtures"
	"eb-evaluation-lab/internal/observability"
	"eb-evaluation-lab/internal/orchestrator"
	"eb-evaluation-lab/internal/reporting"
	"eb-evaluation-lab/internal/storage"
	chstore "eb-evaluation-lab/internal/storage/clickhouse"
	"eb-evaluation-lab/internal/storage/memory"
	"eb-evaluation-lab/internal/storage/migrations"
	pgstore "eb-evaluation-lab/internal/storage/postgres"
)

// Server holds all components of the evaluation service.
type Server struct {
	// Configuration
	outputDir   string
	runInterval time.Duration

	// Components
	orch    *orchestrator.Orchestrator
	metrics *observability.Metrics
	logger  *log.Logger

	// State
	mu         sync.Mutex
	started    time.Time
	lastRun    time.Time
	lastRunID  string
	lastErr    string
	lastErrors int
	running    bool
	runs       int
}

// allStores holds all storage implementations.
type allStores struct {
	seriesStore        storage.SeriesStore
	forecastStore      storage.ForecastStore
	hierarchyStore     storage.HierarchyStore
	evaluationStore    storage.EvaluationStore
	decisionStore      storage.DecisionStore
	groupDecisionStore storage.GroupDecisionStore
	summaryStore       storage.SummaryStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickHouseDSN, "ClickHouse connection string")
	configPath := flag.String("config", env.RunConfig, "Run configuration YAML (empty for the demo configuration)")
	outputDir := flag.String("output-dir", env.OutputDir, "Output directory for reports")
	runInterval := flag.Duration("run-interval", 1*time.Hour, "Evaluation run interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage with the demo panel")
	enforceGate := flag.Bool("enforce-gate", false, "Drop candidates rejected by the governance gate")
	workers := flag.Int("workers", env.Workers, "Selection workers (0 = GOMAXPROCS)")
	metricsAddr := flag.String("metrics-addr", env.MetricsAddr, "HTTP address for health, metrics, status and sweep streams")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load run config: %v", err)
		}
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	m := observability.Default()
	server := newServer(stores, cfg, *enforceGate, m, logger)
	server.outputDir = *outputDir
	server.runInterval = *runInterval

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	// Run the scheduler
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// newServer wires the orchestrator over stores.
func newServer(stores *allStores, cfg *config.RunConfig, enforce bool, m *observability.Metrics, logger *log.Logger) *Server {
	orch := orchestrator.New(orchestrator.Options{
		SeriesStore:        stores.seriesStore,
		ForecastStore:      stores.forecastStore,
		HierarchyStore:     stores.hierarchyStore,
		EvaluationStore:    stores.evaluationStore,
		DecisionStore:      stores.decisionStore,
		GroupDecisionStore: stores.groupDecisionStore,
		SummaryStore:       stores.summaryStore,
		Config:             cfg,
		EnforceGovernance:  enforce,
		Metrics:            m,
		Verbose:            true,
	})

	return &Server{
		outputDir:   "reports",
		runInterval: time.Hour,
		orch:        orch,
		metrics:     m,
		logger:      logger,
		started:     time.Now(),
	}
}

// createStores creates all required stores. Memory mode is seeded with the demo panel.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			seriesStore:        memory.NewSeriesStore(),
			forecastStore:      memory.NewForecastStore(),
			hierarchyStore:     memory.NewHierarchyStore(),
			evaluationStore:    memory.NewEvaluationStore(),
			decisionStore:      memory.NewDecisionStore(),
			groupDecisionStore: memory.NewGroupDecisionStore(),
			summaryStore:       memory.NewSummaryStore(),
		}

		panel, err := fixtures.Generate(fixtures.DefaultConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("generate demo panel: %w", err)
		}
		if err := fixtures.Load(ctx, panel, stores.seriesStore, stores.forecastStore, stores.hierarchyStore); err != nil {
			return nil, nil, fmt.Errorf("load demo panel: %w", err)
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (frozen panel)
		seriesStore:    pgstore.NewSeriesStore(pool),
		forecastStore:  pgstore.NewForecastStore(pool),
		hierarchyStore: pgstore.NewHierarchyStore(pool),

		// ClickHouse stores (run results)
		evaluationStore:    chstore.NewEvaluationStore(chConn),
		decisionStore:      chstore.NewDecisionStore(chConn),
		groupDecisionStore: chstore.NewGroupDecisionStore(chConn),
		summaryStore:       chstore.NewSummaryStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run runs evaluations on schedule until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting evaluation scheduler (interval: %v)...", s.runInterval)

	// Run immediately on start
	s.runEvaluation(ctx)

	ticker := time.NewTicker(s.runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runEvaluation(ctx)
		}
	}
}

// runEvaluation executes one run and writes its reports.
func (s *Server) runEvaluation(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Println("Evaluation already running, skipping...")
		return
	}
	s.running = true
	s.mu.Unlock()

	var (
		runID    string
		runErr   error
		itemErrs int
	)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = time.Now()
		s.runs++
		s.lastErr = ""
		if runErr != nil {
			s.lastErr = runErr.Error()
		} else {
			s.lastRunID = runID
			s.lastErrors = itemErrs
		}
		s.mu.Unlock()
	}()

	s.logger.Println("Running evaluation...")
	start := time.Now()

	result, err := s.orch.Run(ctx)
	if err != nil {
		runErr = err
		s.logger.Printf("Evaluation error: %v", err)
		return
	}
	runID, itemErrs = result.RunID, len(result.Errors)

	paths, err := reporting.WriteFiles(s.outputDir, result.Report)
	if err != nil {
		runErr = err
		s.logger.Printf("Report error: %v", err)
		return
	}

	s.logger.Printf("Evaluation %s completed in %v: %d/%d series selected, %d files in %s/",
		runID, time.Since(start), result.SeriesSelected, result.SeriesLoaded, len(paths), s.outputDir)
}

// routes returns the HTTP handler for health, metrics, status and sweep streams.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Sweep stream
	mux.HandleFunc("/ws/sweep", s.handleSweep)

	return mux
}

// startHTTPServer starts the HTTP server.
func (s *Server) startHTTPServer(addr string) {
	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, s.routes()); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	Config     string    `json:"config"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	ItemErrors int       `json:"item_errors"`
	Runs       int       `json:"runs"`
	Running    bool      `json:"running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).String(),
		Config:     s.orch.Config().Name,
		LastRun:    s.lastRun,
		LastRunID:  s.lastRunID,
		LastError:  s.lastErr,
		ItemErrors: s.lastErrors,
		Runs:       s.runs,
		Running:    s.running,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
