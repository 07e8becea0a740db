package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/storage"
)

// BackfillRunStore implements storage.BackfillRunStore using PostgreSQL.
type BackfillRunStore struct {
	pool *Pool
}

// NewBackfillRunStore creates a new BackfillRunStore.
func NewBackfillRunStore(pool *Pool) *BackfillRunStore {
	return &BackfillRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BackfillRunStore = (*BackfillRunStore)(nil)

// InsertRun records a completed run. Returns ErrDuplicateKey if the run ID
// exists.
func (s *BackfillRunStore) InsertRun(ctx context.Context, run *domain.BackfillRun) error {
	if run == nil || run.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backfill_runs (
			id, time_range, points, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		run.ID,
		string(run.TimeRange),
		run.Points,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backfill run: %w", err)
	}
	return nil
}

// ListRuns retrieves all runs, ordered by started_at ASC.
func (s *BackfillRunStore) ListRuns(ctx context.Context) ([]*domain.BackfillRun, error) {
	query := `
		SELECT id, time_range, points, started_at, finished_at
		FROM backfill_runs
		ORDER BY started_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list backfill runs: %w", err)
	}
	defer rows.Close()

	return scanBackfillRuns(rows)
}

// LatestRun retrieves the most recent run by started_at. Returns ErrNotFound
// when no runs exist.
func (s *BackfillRunStore) LatestRun(ctx context.Context) (*domain.BackfillRun, error) {
	query := `
		SELECT id, time_range, points, started_at, finished_at
		FROM backfill_runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`

	run, err := scanBackfillRun(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest backfill run: %w", err)
	}
	return run, nil
}

// scanBackfillRun scans a single row into a BackfillRun.
func scanBackfillRun(row pgx.Row) (*domain.BackfillRun, error) {
	var (
		run       domain.BackfillRun
		timeRange string
	)

	err := row.Scan(
		&run.ID,
		&timeRange,
		&run.Points,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.TimeRange = domain.TimeRange(timeRange)
	return &run, nil
}

// scanBackfillRuns scans multiple rows into a slice of BackfillRun.
func scanBackfillRuns(rows pgx.Rows) ([]*domain.BackfillRun, error) {
	var runs []*domain.BackfillRun

	for rows.Next() {
		run, err := scanBackfillRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backfill run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backfill run rows: %w", err)
	}

	return runs, nil
}
