package clickhouse

import (
	"context"
	"fmt"
	"time"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/storage"
)

// MetricStore implements storage.MetricStore using ClickHouse.
type MetricStore struct {
	conn *Conn
}

// NewMetricStore creates a new MetricStore.
func NewMetricStore(conn *Conn) *MetricStore {
	return &MetricStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

// InsertPoints adds points in bulk. Fails the entire batch on a duplicate ID.
// MergeTree does not enforce uniqueness, so duplicates are detected with
// explicit checks before the batch is sent.
func (s *MetricStore) InsertPoints(ctx context.Context, points []domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, p := range points {
		if p.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[p.ID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.ID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO metric_points (
			id, timestamp_ms, revenue, active_users, engagement_rate
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.ID, uint64(p.Timestamp.UnixMilli()),
			p.Revenue, uint64(p.ActiveUsers), p.EngagementRate,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// PointsBetween retrieves points within [start, end] (inclusive), ordered by
// timestamp ASC.
func (s *MetricStore) PointsBetween(ctx context.Context, start, end time.Time) ([]domain.MetricPoint, error) {
	query := `
		SELECT id, timestamp_ms, revenue, active_users, engagement_rate
		FROM metric_points
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start.UnixMilli()), uint64(end.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("query points between: %w", err)
	}
	defer rows.Close()

	return scanMetricPoints(rows)
}

// LatestPoint retrieves the most recent point by timestamp. Returns
// ErrNotFound when no points exist.
func (s *MetricStore) LatestPoint(ctx context.Context) (*domain.MetricPoint, error) {
	query := `
		SELECT id, timestamp_ms, revenue, active_users, engagement_rate
		FROM metric_points
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest point: %w", err)
	}
	defer rows.Close()

	points, err := scanMetricPoints(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return &points[0], nil
}

// CountPoints returns the total number of stored points.
func (s *MetricStore) CountPoints(ctx context.Context) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM metric_points`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int64(count), nil
}

// exists checks if a point with the given ID exists.
func (s *MetricStore) exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT count(*) FROM metric_points WHERE id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanMetricPoints scans multiple rows.
func scanMetricPoints(rows chRows) ([]domain.MetricPoint, error) {
	var points []domain.MetricPoint

	for rows.Next() {
		var (
			p           domain.MetricPoint
			timestampMs uint64
			activeUsers uint64
		)

		err := rows.Scan(&p.ID, &timestampMs, &p.Revenue, &activeUsers, &p.EngagementRate)
		if err != nil {
			return nil, fmt.Errorf("scan metric point row: %w", err)
		}

		p.Timestamp = time.UnixMilli(int64(timestampMs)).UTC()
		p.ActiveUsers = int64(activeUsers)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric point rows: %w", err)
	}

	return points, nil
}
