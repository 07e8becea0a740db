package memory

import (
	"context"
	"sort"
	"sync"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/storage"
)

// BackfillRunStore is an in-memory implementation of storage.BackfillRunStore.
type BackfillRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BackfillRun // keyed by run ID
}

// NewBackfillRunStore creates a new in-memory backfill run store.
func NewBackfillRunStore() *BackfillRunStore {
	return &BackfillRunStore{
		data: make(map[string]*domain.BackfillRun),
	}
}

// InsertRun records a completed run. Returns ErrDuplicateKey if the run ID
// exists.
func (s *BackfillRunStore) InsertRun(_ context.Context, run *domain.BackfillRun) error {
	if run == nil || run.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.ID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.data[run.ID] = &runCopy
	return nil
}

// ListRuns retrieves all runs, ordered by started_at ASC.
func (s *BackfillRunStore) ListRuns(_ context.Context) ([]*domain.BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BackfillRun
	for _, r := range s.data {
		runCopy := *r
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

// LatestRun retrieves the most recent run by started_at. Returns ErrNotFound
// when no runs exist.
func (s *BackfillRunStore) LatestRun(_ context.Context) (*domain.BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return nil, storage.ErrNotFound
	}

	var latest *domain.BackfillRun
	for _, r := range s.data {
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}

	runCopy := *latest
	return &runCopy, nil
}

var _ storage.BackfillRunStore = (*BackfillRunStore)(nil)
