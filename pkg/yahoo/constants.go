package yahoo

import (
	"fmt"
	"strings"
)

// Interval is the bar size accepted by the dashboard routes.
type Interval string

// IntervalMeta holds the chart API parameters for an Interval.
type IntervalMeta struct {
	APIValue string // chart "interval" query value
	Range    string // chart "range" query value
	Minutes  int
}

const (
	Interval1Min   Interval = "1min"
	Interval5Min   Interval = "5min"
	Interval15Min  Interval = "15min"
	Interval30Min  Interval = "30min"
	Interval60Min  Interval = "60min"
	IntervalDaily  Interval = "daily"
	IntervalWeekly Interval = "weekly"
)

// DefaultInterval is used when a route omits the interval parameter.
const DefaultInterval = Interval5Min

// validIntervals maps dashboard intervals to chart API parameters. Ranges are
// the shortest that still yield a full screen of bars.
var validIntervals = map[Interval]IntervalMeta{
	Interval1Min:   {APIValue: "1m", Range: "1d", Minutes: 1},
	Interval5Min:   {APIValue: "5m", Range: "5d", Minutes: 5},
	Interval15Min:  {APIValue: "15m", Range: "5d", Minutes: 15},
	Interval30Min:  {APIValue: "30m", Range: "1mo", Minutes: 30},
	Interval60Min:  {APIValue: "60m", Range: "1mo", Minutes: 60},
	IntervalDaily:  {APIValue: "1d", Range: "6mo", Minutes: 1440},
	IntervalWeekly: {APIValue: "1wk", Range: "2y", Minutes: 10080},
}

// IsValid checks if the Interval is one of the predefined intervals.
func (i Interval) IsValid() bool {
	_, ok := validIntervals[i]
	return ok
}

// ParseInterval parses a route parameter. An empty string yields the default.
func ParseInterval(s string) (Interval, IntervalMeta, error) {
	if s == "" {
		return DefaultInterval, validIntervals[DefaultInterval], nil
	}
	interval := Interval(strings.ToLower(s))
	meta, ok := validIntervals[interval]
	if !ok {
		return "", IntervalMeta{}, fmt.Errorf("invalid interval: %s", s)
	}
	return interval, meta, nil
}
