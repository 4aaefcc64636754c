// Package feed supplies historical bars to the backtest engine. Every
// provider returns bars ascending by time with duplicates removed.
package feed

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// ErrNoData is returned when a request matches no bars.
var ErrNoData = errors.New("no data")

// Request selects bars in [Start, End). A zero Start or End leaves that
// side open.
type Request struct {
	Symbol   string    `json:"symbol" yaml:"symbol"`
	Interval string    `json:"interval" yaml:"interval"`
	Start    time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End      time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Provider loads historical bars.
type Provider interface {
	Bars(ctx context.Context, req Request) ([]market.Bar, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) ([]market.Bar, error)

func (f ProviderFunc) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	return f(ctx, req)
}

// Normalize sorts bars by time and keeps the last of any bars sharing a
// timestamp. The input slice is not modified.
func Normalize(bars []market.Bar) []market.Bar {
	if len(bars) == 0 {
		return nil
	}
	sorted := make([]market.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func filter(bars []market.Bar, req Request) []market.Bar {
	var out []market.Bar
	for _, b := range bars {
		if inRange(b.Time, req.Start, req.End) {
			out = append(out, b)
		}
	}
	return out
}

// Static serves bars held in memory.
type Static struct {
	bars []market.Bar
}

// NewStatic normalizes bars once and serves them for any symbol.
func NewStatic(bars []market.Bar) *Static {
	return &Static{bars: Normalize(bars)}
}

func (s *Static) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := filter(s.bars, req)
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
