package domain

import (
	"fmt"
	"time"
)

// TimeRange names a fixed reporting window.
type TimeRange string

// Supported time ranges.
const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	Range90d TimeRange = "90d"
	Range1y  TimeRange = "1y"
	RangeAll TimeRange = "all"
)

// Window is the sampling policy for a time range.
type Window struct {
	Interval time.Duration // spacing between consecutive points
	Points   int           // nominal point count
}

// windows is the fixed sampling table. Not user-configurable.
var windows = map[TimeRange]Window{
	Range24h: {Interval: time.Hour, Points: 24},
	Range7d:  {Interval: 24 * time.Hour, Points: 7},
	Range30d: {Interval: 24 * time.Hour, Points: 30},
	Range90d: {Interval: 72 * time.Hour, Points: 30},
	Range1y:  {Interval: 7 * 24 * time.Hour, Points: 52},
	RangeAll: {Interval: 14 * 24 * time.Hour, Points: 52},
}

// AllTimeRanges lists every supported range in display order.
var AllTimeRanges = []TimeRange{Range24h, Range7d, Range30d, Range90d, Range1y, RangeAll}

// ParseTimeRange validates a raw time range value.
func ParseTimeRange(s string) (TimeRange, error) {
	tr := TimeRange(s)
	if _, ok := windows[tr]; !ok {
		return "", fmt.Errorf("unknown time range %q", s)
	}
	return tr, nil
}

// Window returns the sampling policy for the range.
// The zero Window is returned for unknown ranges.
func (tr TimeRange) Window() Window {
	return windows[tr]
}

// Span is the nominal duration covered by the range's window.
func (tr TimeRange) Span() time.Duration {
	w := windows[tr]
	if w.Points == 0 {
		return 0
	}
	return w.Interval * time.Duration(w.Points-1)
}
