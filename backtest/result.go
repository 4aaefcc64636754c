package backtest

import (
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/metrics"
	"github.com/rustyeddy/tradebot/sim"
)

// Result is everything a run produced. Trades and Equity are in bar order
// and identical across runs of the same inputs.
type Result struct {
	Strategy   string     `json:"strategy"`
	Symbol     string     `json:"symbol"`
	Interval   string     `json:"interval,omitempty"`
	FillTiming FillTiming `json:"fill_timing"`

	InitialCapital float64 `json:"initial_capital"`
	Commission     float64 `json:"commission"`
	FinalCash      float64 `json:"final_cash"`
	FinalPosition  float64 `json:"final_position"`

	Metrics metrics.Metrics      `json:"metrics"`
	Trades  []market.TradeRecord `json:"trades"`
	Equity  []market.EquityPoint `json:"equity"`

	// OpenOrders were still resting when the run ended.
	OpenOrders    []sim.Order    `json:"open_orders,omitempty"`
	StrategyState map[string]any `json:"strategy_state,omitempty"`

	Bars   int  `json:"bars"`
	NoData bool `json:"no_data,omitempty"`
	// Duration is wall-clock simulation time.
	Duration time.Duration `json:"duration"`
}

// FinalEquity is the account value after the last bar.
func (r *Result) FinalEquity() float64 {
	return r.Metrics.FinalEquity
}
