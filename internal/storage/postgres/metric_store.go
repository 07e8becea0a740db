package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/storage"
)

// MetricStore implements storage.MetricStore using PostgreSQL.
type MetricStore struct {
	pool *Pool
}

// NewMetricStore creates a new MetricStore.
func NewMetricStore(pool *Pool) *MetricStore {
	return &MetricStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

// InsertPoints adds points to the archive atomically. Fails the entire batch
// on any duplicate.
func (s *MetricStore) InsertPoints(ctx context.Context, points []domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO metric_points (
			id, timestamp, revenue, active_users, engagement_rate
		) VALUES ($1, $2, $3, $4, $5)
	`

	for _, p := range points {
		if p.ID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			p.ID,
			p.Timestamp,
			p.Revenue,
			p.ActiveUsers,
			p.EngagementRate,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert metric point: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// PointsBetween retrieves points within [start, end] (inclusive), ordered by
// timestamp ASC.
func (s *MetricStore) PointsBetween(ctx context.Context, start, end time.Time) ([]domain.MetricPoint, error) {
	query := `
		SELECT id, timestamp, revenue, active_users, engagement_rate
		FROM metric_points
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get points by time range: %w", err)
	}
	defer rows.Close()

	return scanMetricPoints(rows)
}

// LatestPoint retrieves the most recent point. Returns ErrNotFound when the
// archive is empty.
func (s *MetricStore) LatestPoint(ctx context.Context) (*domain.MetricPoint, error) {
	query := `
		SELECT id, timestamp, revenue, active_users, engagement_rate
		FROM metric_points
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	var p domain.MetricPoint
	err := s.pool.QueryRow(ctx, query).Scan(
		&p.ID,
		&p.Timestamp,
		&p.Revenue,
		&p.ActiveUsers,
		&p.EngagementRate,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest point: %w", err)
	}

	return &p, nil
}

// CountPoints reports the number of archived points.
func (s *MetricStore) CountPoints(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM metric_points`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return count, nil
}

// scanMetricPoints scans multiple rows into a slice of MetricPoint.
func scanMetricPoints(rows pgx.Rows) ([]domain.MetricPoint, error) {
	var points []domain.MetricPoint

	for rows.Next() {
		var p domain.MetricPoint

		err := rows.Scan(
			&p.ID,
			&p.Timestamp,
			&p.Revenue,
			&p.ActiveUsers,
			&p.EngagementRate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric point row: %w", err)
		}

		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric point rows: %w", err)
	}

	return points, nil
}
