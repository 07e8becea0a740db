package domain

import "time"

// MetricPoint is a single sampled business metric observation.
// Points are immutable once created and ordered by timestamp ascending
// within any sequence.
type MetricPoint struct {
	ID             string    `json:"id"`             // opaque unique identifier
	Timestamp      time.Time `json:"timestamp"`      // sample instant
	Revenue        float64   `json:"revenue"`        // >= 0, whole units
	ActiveUsers    int64     `json:"activeUsers"`    // >= 0
	EngagementRate float64   `json:"engagementRate"` // percentage in [0, 100]
}

// Summary holds aggregate and trend values derived from a point sequence.
// Summaries are recomputed on demand and never persisted.
type Summary struct {
	TotalRevenue        float64 `json:"totalRevenue"`
	TotalUsers          int64   `json:"totalUsers"` // latest point's ActiveUsers, not a sum
	AvgEngagement       float64 `json:"avgEngagement"`
	RevenueChangePct    float64 `json:"revenueChangePct"`
	UsersChangePct      float64 `json:"usersChangePct"`
	EngagementChangePct float64 `json:"engagementChangePct"`
}
