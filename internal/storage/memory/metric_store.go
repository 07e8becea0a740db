package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/storage"
)

// MetricStore is an in-memory implementation of storage.MetricStore.
type MetricStore struct {
	mu   sync.RWMutex
	data map[string]domain.MetricPoint // keyed by point ID
}

// NewMetricStore creates a new in-memory metric store.
func NewMetricStore() *MetricStore {
	return &MetricStore{
		data: make(map[string]domain.MetricPoint),
	}
}

// InsertPoints adds points to the archive. Fails the entire batch on any
// duplicate.
func (s *MetricStore) InsertPoints(_ context.Context, points []domain.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track IDs in this batch to detect intra-batch duplicates
	batchIDs := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchIDs[p.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchIDs[p.ID] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		s.data[p.ID] = p
	}

	return nil
}

// PointsBetween retrieves points within [start, end] (inclusive), ordered by
// timestamp ASC.
func (s *MetricStore) PointsBetween(_ context.Context, start, end time.Time) ([]domain.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.MetricPoint
	for _, p := range s.data {
		if !p.Timestamp.Before(start) && !p.Timestamp.After(end) {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// LatestPoint retrieves the most recent point. Returns ErrNotFound when the
// archive is empty.
func (s *MetricStore) LatestPoint(_ context.Context) (*domain.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, storage.ErrNotFound
	}

	var latest domain.MetricPoint
	first := true
	for _, p := range s.data {
		if first || p.Timestamp.After(latest.Timestamp) {
			latest = p
			first = false
		}
	}

	return &latest, nil
}

// CountPoints reports the number of archived points.
func (s *MetricStore) CountPoints(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

var _ storage.MetricStore = (*MetricStore)(nil)
