// Package main runs the metrics feed server:
// - History API and live streams (SSE, WebSocket) on the feed listener
// - Prometheus metrics on a dedicated listener
// - Optional recorder that archives sampled points to storage
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"metrics-feed/internal/api"
	"metrics-feed/internal/generator"
	"metrics-feed/internal/observability"
	"metrics-feed/internal/recorder"
	"metrics-feed/internal/storage"
	chstore "metrics-feed/internal/storage/clickhouse"
	"metrics-feed/internal/storage/memory"
	"metrics-feed/internal/storage/migrations"
	pgstore "metrics-feed/internal/storage/postgres"
	"metrics-feed/internal/stream"
)

// serverConfig carries the parsed flag values.
type serverConfig struct {
	addr              string
	metricsAddr       string
	updateInterval    time.Duration
	heartbeatInterval time.Duration
	seed              int64
	archive           bool
	archiveInterval   time.Duration
	archiveBatch      int
	postgresDSN       string
	clickhouseDSN     string
	useMemory         bool
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("FEED_ADDR", ":8080"), "Feed HTTP address (history + streams)")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address (empty to disable)")
	updateInterval := flag.Duration("update-interval", stream.DefaultUpdateInterval, "Live stream data tick interval")
	heartbeatInterval := flag.Duration("heartbeat-interval", stream.DefaultHeartbeatInterval, "Live stream heartbeat interval")
	seed := flag.Int64("seed", 0, "Generator seed (0 = time-seeded)")
	archive := flag.Bool("archive", false, "Archive sampled points to storage")
	archiveInterval := flag.Duration("archive-interval", recorder.DefaultSampleInterval, "Recorder sample interval")
	archiveBatch := flag.Int("archive-batch", recorder.DefaultFlushSize, "Recorder flush batch size")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *archive && !*useMemory && *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--archive needs --postgres-dsn or --clickhouse-dsn (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

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

	err := run(ctx, logger, serverConfig{
		addr:              *addr,
		metricsAddr:       *metricsAddr,
		updateInterval:    *updateInterval,
		heartbeatInterval: *heartbeatInterval,
		seed:              *seed,
		archive:           *archive,
		archiveInterval:   *archiveInterval,
		archiveBatch:      *archiveBatch,
		postgresDSN:       *postgresDSN,
		clickhouseDSN:     *clickhouseDSN,
		useMemory:         *useMemory,
	})

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires the components and blocks until shutdown or a fatal error.
func run(ctx context.Context, logger *log.Logger, cfg serverConfig) error {
	gen := newGenerator(cfg.seed)

	feed := stream.New(gen, stream.Options{
		UpdateInterval:    cfg.updateInterval,
		HeartbeatInterval: cfg.heartbeatInterval,
		Logger:            log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lshortfile),
	})

	handler := api.New(gen, feed, logger)

	errCh := make(chan error, 2)

	go func() {
		logger.Printf("Starting feed server on %s", cfg.addr)
		if err := http.ListenAndServe(cfg.addr, handler.Routes()); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("feed server: %w", err)
		}
	}()

	if cfg.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.metricsAddr)
			if err := http.ListenAndServe(cfg.metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	if cfg.archive {
		store, cleanup, err := createMetricStore(ctx, logger, cfg)
		if err != nil {
			return fmt.Errorf("create metric store: %w", err)
		}
		defer cleanup()

		runner := recorder.NewRunner(recorder.RunnerOptions{
			Source:         gen,
			Store:          store,
			SampleInterval: cfg.archiveInterval,
			FlushSize:      cfg.archiveBatch,
			Logger:         log.New(os.Stdout, "[recorder] ", log.LstdFlags|log.Lshortfile),
		})

		go func() {
			if err := runner.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("recorder: %w", err)
			}
		}()
	}

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// newGenerator builds the point source. A non-zero seed makes the feed
// reproducible across restarts.
func newGenerator(seed int64) *generator.Generator {
	cfg := generator.Config{}
	if seed != 0 {
		cfg.Rand = rand.New(rand.NewSource(seed))
	}
	return generator.New(cfg)
}

// createMetricStore picks the archive backend: memory, ClickHouse when its
// DSN is set, PostgreSQL otherwise. Migrations run before the store is used.
func createMetricStore(ctx context.Context, logger *log.Logger, cfg serverConfig) (storage.MetricStore, func(), error) {
	if cfg.useMemory {
		return memory.NewMetricStore(), func() {}, nil
	}

	if cfg.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Println("Archiving to ClickHouse")
		return chstore.NewMetricStore(conn), func() { conn.Close() }, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Println("Archiving to PostgreSQL")
	return pgstore.NewMetricStore(pool), func() { pool.Close() }, nil
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
