// Package main generates a historical metric series for a named time range,
// archives it, and records the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/generator"
	"metrics-feed/internal/stats"
	"metrics-feed/internal/storage"
	chstore "metrics-feed/internal/storage/clickhouse"
	"metrics-feed/internal/storage/memory"
	"metrics-feed/internal/storage/migrations"
	pgstore "metrics-feed/internal/storage/postgres"
)

func main() {
	// Parse flags
	timeRange := flag.String("time-range", "30d", "Time range to generate (24h, 7d, 30d, 90d, 1y, all)")
	endStr := flag.String("end", "", "Series end instant (RFC3339, default now)")
	seed := flag.Int64("seed", 0, "Generator seed (0 = time-seeded)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[backfill] ", log.LstdFlags|log.Lshortfile)

	tr, err := domain.ParseTimeRange(*timeRange)
	if err != nil {
		logger.Fatalf("Invalid time range: %v", err)
	}

	end := time.Now()
	if *endStr != "" {
		end, err = time.Parse(time.RFC3339, *endStr)
		if err != nil {
			logger.Fatalf("Invalid end instant: %v", err)
		}
	}

	if !*useMemory && *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required (use --use-memory for a dry run)")
	}

	ctx := context.Background()

	if err := runBackfill(ctx, logger, tr, end, *seed, *postgresDSN, *clickhouseDSN, *useMemory); err != nil {
		logger.Fatalf("Backfill failed: %v", err)
	}
}

// runBackfill generates the series, archives it, and records the run.
func runBackfill(ctx context.Context, logger *log.Logger, tr domain.TimeRange, end time.Time, seed int64, postgresDSN, clickhouseDSN string, useMemory bool) error {
	cfg := generator.Config{}
	if seed != 0 {
		cfg.Rand = rand.New(rand.NewSource(seed))
	}
	gen := generator.New(cfg)

	started := time.Now()
	points, err := gen.GenerateSeries(tr, end)
	if err != nil {
		return fmt.Errorf("generate series: %w", err)
	}

	metricStore, runStore, cleanup, err := createStores(ctx, logger, postgresDSN, clickhouseDSN, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := metricStore.InsertPoints(ctx, points); err != nil {
		return fmt.Errorf("insert points: %w", err)
	}

	summary := stats.Summarize(points)
	logger.Printf("Backfilled %d points for %s ending %s", len(points), tr, end.Format(time.RFC3339))
	logger.Printf("Totals: revenue %.2f, users %d, avg engagement %.2f%%",
		summary.TotalRevenue, summary.TotalUsers, summary.AvgEngagement)

	if runStore == nil {
		logger.Println("Run record skipped: run history requires PostgreSQL")
		return nil
	}

	run := &domain.BackfillRun{
		ID:         uuid.New().String(),
		TimeRange:  tr,
		Points:     len(points),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := runStore.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	logger.Printf("Run %s recorded in %v", run.ID, run.FinishedAt.Sub(run.StartedAt))

	return nil
}

// createStores picks the archive backend for points and, when PostgreSQL is
// available, a store for run records. Points prefer ClickHouse when both
// DSNs are set; run bookkeeping always lives in PostgreSQL.
func createStores(ctx context.Context, logger *log.Logger, postgresDSN, clickhouseDSN string, useMemory bool) (storage.MetricStore, storage.BackfillRunStore, func(), error) {
	if useMemory {
		return memory.NewMetricStore(), memory.NewBackfillRunStore(), func() {}, nil
	}

	var (
		metricStore storage.MetricStore
		runStore    storage.BackfillRunStore
		cleanups    []func()
	)

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		metricStore = chstore.NewMetricStore(conn)
		cleanups = append(cleanups, func() { conn.Close() })
		logger.Println("Archiving points to ClickHouse")
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			runCleanups(cleanups)
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			runCleanups(cleanups)
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if metricStore == nil {
			metricStore = pgstore.NewMetricStore(pool)
			logger.Println("Archiving points to PostgreSQL")
		}
		runStore = pgstore.NewBackfillRunStore(pool)
		cleanups = append(cleanups, pool.Close)
	}

	cleanup := func() { runCleanups(cleanups) }
	return metricStore, runStore, cleanup, nil
}

func runCleanups(cleanups []func()) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
