package domain

import "time"

// BackfillRun records one archival run of generated history.
type BackfillRun struct {
	ID         string    // unique run identifier
	TimeRange  TimeRange // window that was generated
	Points     int       // number of points written
	StartedAt  time.Time
	FinishedAt time.Time
}
