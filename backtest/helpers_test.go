package backtest

import (
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/strategies"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// series builds hourly bars whose open is the previous close.
func series(closes ...float64) []market.Bar {
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  open,
			High:  max(open, c),
			Low:   min(open, c),
			Close: c,
		}
	}
	return bars
}

func flat(n int, price float64) []market.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return series(closes...)
}

func dcaConfig() strategies.Config {
	return strategies.Config{
		Type:     strategies.DCA,
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Settings: strategies.Settings{"purchase_amount": 100, "purchase_frequency_hours": 24},
	}
}

func gridConfig(mode string) strategies.Config {
	return strategies.Config{
		Type:     strategies.Grid,
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Settings: strategies.Settings{
			"lower_bound": 90, "upper_bound": 110, "num_grids": 5,
			"total_investment": 1000, "grid_mode": mode,
		},
	}
}

// scripted emits preset decisions by bar index and records callbacks.
type scripted struct {
	at       map[int]strategies.Decision
	n        int
	fills    []strategies.FillEvent
	canceled []strategies.Decision
	onBar    func(i int)
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) self() strategies.Policy { return s }

func (s *scripted) Decide(window []market.Bar, _ strategies.LedgerView) (*strategies.Decision, error) {
	i := len(window) - 1
	s.n++
	if s.onBar != nil {
		s.onBar(i)
	}
	if d, ok := s.at[i]; ok {
		return &d, nil
	}
	return nil, nil
}

func (s *scripted) OnFill(ev strategies.FillEvent) []strategies.Decision {
	s.fills = append(s.fills, ev)
	return nil
}

func (s *scripted) OnCancel(d strategies.Decision) {
	s.canceled = append(s.canceled, d)
}
