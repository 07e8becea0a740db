// Package generator produces synthetic business metric points.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"metrics-feed/internal/domain"
	"metrics-feed/internal/idgen"
	"metrics-feed/internal/observability"
)

// Default model parameters, applied when the corresponding Config field is zero.
const (
	DefaultBaseRevenue          = 45000.0
	DefaultBaseUsers            = 12000.0
	DefaultBaseEngagement       = 62.0
	DefaultSeasonalAmplitude    = 0.18
	DefaultWeekendBoost         = 1.15
	DefaultRevenueGrowthRate    = 0.06
	DefaultUsersGrowthRate      = 0.04
	DefaultRevenueVolatility    = 0.12
	DefaultUsersVolatility      = 0.08
	DefaultEngagementVolatility = 0.05
)

// Engagement rate is clamped to this band before rounding.
const (
	engagementFloor = 40.0
	engagementCeil  = 90.0
)

// Config contains tuning parameters for the value model.
type Config struct {
	BaseRevenue          float64
	BaseUsers            float64
	BaseEngagement       float64
	SeasonalAmplitude    float64 // Amplitude of the yearly sinusoid
	WeekendBoost         float64 // Multiplier applied on Saturday and Sunday
	RevenueGrowthRate    float64 // Monthly compounding rate
	UsersGrowthRate      float64 // Monthly compounding rate
	RevenueVolatility    float64 // Uniform jitter magnitude
	UsersVolatility      float64 // Uniform jitter magnitude
	EngagementVolatility float64 // Uniform jitter magnitude
	NotBefore            time.Time  // Points earlier than this instant are trimmed from series
	Rand                 *rand.Rand // Default: time-seeded source
}

// Generator produces metric points from a seasonal growth model with
// multiplicative random jitter.
type Generator struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator, filling zero Config fields with defaults.
func New(cfg Config) *Generator {
	if cfg.BaseRevenue == 0 {
		cfg.BaseRevenue = DefaultBaseRevenue
	}
	if cfg.BaseUsers == 0 {
		cfg.BaseUsers = DefaultBaseUsers
	}
	if cfg.BaseEngagement == 0 {
		cfg.BaseEngagement = DefaultBaseEngagement
	}
	if cfg.SeasonalAmplitude == 0 {
		cfg.SeasonalAmplitude = DefaultSeasonalAmplitude
	}
	if cfg.WeekendBoost == 0 {
		cfg.WeekendBoost = DefaultWeekendBoost
	}
	if cfg.RevenueGrowthRate == 0 {
		cfg.RevenueGrowthRate = DefaultRevenueGrowthRate
	}
	if cfg.UsersGrowthRate == 0 {
		cfg.UsersGrowthRate = DefaultUsersGrowthRate
	}
	if cfg.RevenueVolatility == 0 {
		cfg.RevenueVolatility = DefaultRevenueVolatility
	}
	if cfg.UsersVolatility == 0 {
		cfg.UsersVolatility = DefaultUsersVolatility
	}
	if cfg.EngagementVolatility == 0 {
		cfg.EngagementVolatility = DefaultEngagementVolatility
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Generator{cfg: cfg, rng: rng}
}

// GenerateSeries produces the historical series for a time range, ending at
// end. Points are ordered by timestamp ascending and spaced by the range's
// sample interval. Points that would fall before Config.NotBefore are
// trimmed, so the series may be shorter than the nominal count.
func (g *Generator) GenerateSeries(tr domain.TimeRange, end time.Time) ([]domain.MetricPoint, error) {
	w := tr.Window()
	if w.Points == 0 {
		return nil, fmt.Errorf("unknown time range %q", tr)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	points := make([]domain.MetricPoint, 0, w.Points)
	for i := 0; i < w.Points; i++ {
		ts := end.Add(-time.Duration(w.Points-1-i) * w.Interval)
		if !g.cfg.NotBefore.IsZero() && ts.Before(g.cfg.NotBefore) {
			continue
		}
		points = append(points, g.pointAt(ts, i, w.Points))
	}

	observability.RecordSeriesGenerated(string(tr))
	return points, nil
}

// GenerateOne produces a single point anchored to the given instant, used
// for live stream ticks.
func (g *Generator) GenerateOne(now time.Time) domain.MetricPoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pointAt(now, 0, 1)
}

// NextPoint returns a point anchored to the current time. It satisfies the
// stream source contract and never fails.
func (g *Generator) NextPoint(ctx context.Context) (domain.MetricPoint, error) {
	return g.GenerateOne(time.Now()), nil
}

// pointAt computes the value model for point index i of n at instant ts.
// Callers must hold g.mu: the rng is not safe for concurrent use.
func (g *Generator) pointAt(ts time.Time, i, n int) domain.MetricPoint {
	seasonal := 1 + g.cfg.SeasonalAmplitude*math.Sin(2*math.Pi*(float64(ts.Month())-5)/12)

	weekend := 1.0
	if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekend = g.cfg.WeekendBoost
	}

	revenueGrowth := math.Pow(1+g.cfg.RevenueGrowthRate/30, float64(i))
	usersGrowth := math.Pow(1+g.cfg.UsersGrowthRate/30, float64(i))

	revenue := math.Max(0, math.Round(g.cfg.BaseRevenue*revenueGrowth*seasonal*weekend*g.jitter(g.cfg.RevenueVolatility)))
	users := math.Max(0, math.Round(g.cfg.BaseUsers*usersGrowth*seasonal*weekend*g.jitter(g.cfg.UsersVolatility)))

	cycle := 1 + 0.1*math.Sin(4*math.Pi*float64(i)/float64(n))
	engagement := g.cfg.BaseEngagement * cycle * g.jitter(g.cfg.EngagementVolatility)
	engagement = math.Min(math.Max(engagement, engagementFloor), engagementCeil)
	engagement = math.Round(engagement*100) / 100

	observability.RecordPointGenerated()

	return domain.MetricPoint{
		ID:             idgen.PointID(ts, revenue, int64(users), engagement),
		Timestamp:      ts,
		Revenue:        revenue,
		ActiveUsers:    int64(users),
		EngagementRate: engagement,
	}
}

// jitter returns a multiplicative factor drawn uniformly from
// [1-magnitude, 1+magnitude].
func (g *Generator) jitter(magnitude float64) float64 {
	return 1 + (g.rng.Float64()*2-1)*magnitude
}
