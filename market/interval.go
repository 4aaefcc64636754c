package market

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPeriodsPerYear is used for annualization when no interval is known.
const DefaultPeriodsPerYear = 252

const year = 365 * 24 * time.Hour

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ParseInterval converts an exchange-style interval ("1m", "4h", "1d") into
// a duration.
func ParseInterval(s string) (time.Duration, error) {
	d, ok := intervals[strings.TrimSpace(s)]
	if !ok {
		return 0, fmt.Errorf("unknown interval %q", s)
	}
	return d, nil
}

// PeriodsPerYear returns how many bars of the interval fit in a calendar
// year. Crypto venues trade around the clock so no session calendar applies.
// An empty interval yields DefaultPeriodsPerYear.
func PeriodsPerYear(interval string) (float64, error) {
	if strings.TrimSpace(interval) == "" {
		return DefaultPeriodsPerYear, nil
	}
	d, err := ParseInterval(interval)
	if err != nil {
		return 0, err
	}
	return float64(year) / float64(d), nil
}
