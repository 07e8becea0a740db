package storage

import (
	"context"
	"time"

	"metrics-feed/internal/domain"
)

// MetricStore provides access to archived metric points.
type MetricStore interface {
	// InsertPoints adds points to the archive. Returns ErrDuplicateKey if any
	// point ID already exists; the entire batch fails.
	InsertPoints(ctx context.Context, points []domain.MetricPoint) error

	// PointsBetween retrieves points with timestamps within [start, end]
	// (inclusive), ordered by timestamp ASC.
	PointsBetween(ctx context.Context, start, end time.Time) ([]domain.MetricPoint, error)

	// LatestPoint retrieves the most recent point by timestamp. Returns
	// ErrNotFound when the archive is empty.
	LatestPoint(ctx context.Context) (*domain.MetricPoint, error)

	// CountPoints reports the number of archived points.
	CountPoints(ctx context.Context) (int64, error)
}

// BackfillRunStore provides access to recorded backfill runs.
type BackfillRunStore interface {
	// InsertRun records a completed backfill run. Returns ErrDuplicateKey if
	// the run ID already exists.
	InsertRun(ctx context.Context, run *domain.BackfillRun) error

	// ListRuns retrieves all runs, ordered by started_at ASC.
	ListRuns(ctx context.Context) ([]*domain.BackfillRun, error)

	// LatestRun retrieves the most recent run by started_at. Returns
	// ErrNotFound when no runs exist.
	LatestRun(ctx context.Context) (*domain.BackfillRun, error)
}
