// Package stats derives summary statistics from metric point series.
package stats

import (
	"metrics-feed/internal/domain"
)

// Summarize computes the Summary for an ordered series of points. An empty
// series yields an all-zero Summary.
func Summarize(points []domain.MetricPoint) domain.Summary {
	if len(points) == 0 {
		return domain.Summary{}
	}

	var totalRevenue, totalEngagement float64
	for _, p := range points {
		totalRevenue += p.Revenue
		totalEngagement += p.EngagementRate
	}

	n := len(points)
	summary := domain.Summary{
		TotalRevenue:  totalRevenue,
		TotalUsers:    points[n-1].ActiveUsers,
		AvgEngagement: totalEngagement / float64(n),
	}

	// Change percentages compare the first and last 20% of the series.
	// Below five points both segments are empty and the changes stay zero.
	k := n / 5
	if k > 0 {
		first := points[:k]
		last := points[n-k:]

		summary.RevenueChangePct = ChangePct(
			segmentMean(first, func(p domain.MetricPoint) float64 { return p.Revenue }),
			segmentMean(last, func(p domain.MetricPoint) float64 { return p.Revenue }),
		)
		summary.UsersChangePct = ChangePct(
			segmentMean(first, func(p domain.MetricPoint) float64 { return float64(p.ActiveUsers) }),
			segmentMean(last, func(p domain.MetricPoint) float64 { return float64(p.ActiveUsers) }),
		)
		summary.EngagementChangePct = ChangePct(
			segmentMean(first, func(p domain.MetricPoint) float64 { return p.EngagementRate }),
			segmentMean(last, func(p domain.MetricPoint) float64 { return p.EngagementRate }),
		)
	}

	return summary
}

// ChangePct returns the percentage change from oldValue to newValue. A zero
// oldValue reports zero change instead of dividing by zero.
func ChangePct(oldValue, newValue float64) float64 {
	if oldValue == 0 {
		return 0
	}
	return (newValue - oldValue) / oldValue * 100
}

func segmentMean(points []domain.MetricPoint, value func(domain.MetricPoint) float64) float64 {
	if len(points) == 0 {
		return 0
	}

	var sum float64
	for _, p := range points {
		sum += value(p)
	}
	return sum / float64(len(points))
}
