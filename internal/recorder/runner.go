package recorder

import (
	"context"
	"errors"
	"log"
	"time"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/observability"
	"metrics-feed/internal/storage"
	"metrics-feed/internal/stream"
)

// Defaults applied by NewRunner for zero-valued options.
const (
	DefaultSampleInterval = 5 * time.Second
	DefaultFlushSize      = 12
)

// Runner samples points from a source and archives them in batches.
type Runner struct {
	source         stream.PointSource
	store          storage.MetricStore
	sampleInterval time.Duration
	flushSize      int
	logger         *log.Logger

	buf []domain.MetricPoint
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source         stream.PointSource
	Store          storage.MetricStore
	SampleInterval time.Duration // Default: 5s
	FlushSize      int           // Default: 12 points per batch
	Logger         *log.Logger
}

// NewRunner creates a new archival runner.
func NewRunner(opts RunnerOptions) *Runner {
	sampleInterval := opts.SampleInterval
	if sampleInterval == 0 {
		sampleInterval = DefaultSampleInterval
	}

	flushSize := opts.FlushSize
	if flushSize == 0 {
		flushSize = DefaultFlushSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:         opts.Source,
		store:          opts.Store,
		sampleInterval: sampleInterval,
		flushSize:      flushSize,
		logger:         logger,
	}
}

// Run samples and archives points until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Recorder started, sample interval: %v, flush size: %d", r.sampleInterval, r.flushSize)

	ticker := time.NewTicker(r.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The final flush gets its own brief context since ctx is
			// already cancelled.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.flush(flushCtx)
			cancel()
			r.logger.Println("Recorder stopping...")
			return ctx.Err()

		case <-ticker.C:
			point, err := r.source.NextPoint(ctx)
			if err != nil {
				r.logger.Printf("Error sampling point: %v", err)
				continue
			}

			r.buf = append(r.buf, point)
			if len(r.buf) >= r.flushSize {
				r.flush(ctx)
			}
		}
	}
}

// flush archives the buffered points. The buffer is reset regardless of the
// outcome so a failing store cannot grow it without bound.
func (r *Runner) flush(ctx context.Context) {
	if len(r.buf) == 0 {
		return
	}

	n := len(r.buf)
	err := r.store.InsertPoints(ctx, r.buf)
	r.buf = r.buf[:0]

	switch {
	case err == nil:
		observability.RecordPointsArchived(n)
		r.logger.Printf("Archived %d points", n)
	case errors.Is(err, storage.ErrDuplicateKey):
		// Overlap with an earlier backfill is expected, not an error
	default:
		observability.RecordArchiveError()
		r.logger.Printf("Error archiving points: %v", err)
	}
}
