// Package metrics derives performance statistics from a trade log and an
// equity curve.
package metrics

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/shopspring/decimal"
)

// Options control annualization of the Sharpe ratio.
type Options struct {
	// RiskFreeRate is the annual risk-free rate, e.g. 0.02.
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	// PeriodsPerYear is the number of equity points per year.
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`
}

// DefaultOptions annualizes with market.DefaultPeriodsPerYear and no
// risk-free rate.
func DefaultOptions() Options {
	return Options{PeriodsPerYear: market.DefaultPeriodsPerYear}
}

// Metrics summarizes one simulation run. Percentages are expressed in
// percent, not as fractions.
type Metrics struct {
	TotalTrades   int `json:"total_trades"`
	ClosedTrades  int `json:"closed_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalPnLPct    float64 `json:"total_pnl_pct"`

	WinRate     float64 `json:"win_rate"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"`
	// ProfitFactor is +Inf when no closed trade lost money.
	ProfitFactor float64 `json:"-"`

	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`

	CommissionPaid float64 `json:"commission_paid"`
	TotalBought    float64 `json:"total_bought"`
	TotalSold      float64 `json:"total_sold"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ProfitFactorInfinite reports whether the profit factor is the unbounded
// sentinel.
func (m Metrics) ProfitFactorInfinite() bool { return math.IsInf(m.ProfitFactor, 1) }

// MarshalJSON writes the profit factor as null when it is unbounded.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	out := struct {
		plain
		ProfitFactor         *float64 `json:"profit_factor"`
		ProfitFactorInfinite bool     `json:"profit_factor_infinite"`
	}{plain: plain(m)}
	if m.ProfitFactorInfinite() {
		out.ProfitFactorInfinite = true
	} else {
		pf := m.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the unbounded profit factor.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	type plain Metrics
	in := struct {
		*plain
		ProfitFactor         *float64 `json:"profit_factor"`
		ProfitFactorInfinite bool     `json:"profit_factor_infinite"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.ProfitFactorInfinite:
		m.ProfitFactor = math.Inf(1)
	case in.ProfitFactor != nil:
		m.ProfitFactor = *in.ProfitFactor
	}
	return nil
}

// Calculate computes every metric. It never fails: degenerate input maps to
// zero values, or +Inf for the profit factor.
func Calculate(trades []market.TradeRecord, equity []market.EquityPoint, initialCapital float64, opts Options) Metrics {
	m := Metrics{
		TotalTrades:    len(trades),
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
	}

	for _, t := range trades {
		m.CommissionPaid += t.Commission
		switch t.Side {
		case market.Buy:
			m.TotalBought += t.Notional
		case market.Sell, market.Close:
			m.TotalSold += t.Notional
		}
		if !t.HasPnL() {
			continue
		}
		m.ClosedTrades++
		pnl := t.PnL()
		switch {
		case pnl > 0:
			m.WinningTrades++
			m.GrossProfit += pnl
		case pnl < 0:
			m.LosingTrades++
			m.GrossLoss += -pnl
		}
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosedTrades) * 100
		m.ProfitFactor = ProfitFactor(m.GrossProfit, m.GrossLoss)
	}

	curve := Normalize(equity)
	if len(curve) > 0 {
		m.Start = curve[0].Time
		m.End = curve[len(curve)-1].Time
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	m.TotalPnL = m.FinalEquity - initialCapital
	if initialCapital != 0 {
		m.TotalPnLPct = m.TotalPnL / initialCapital * 100
	}

	m.MaxDrawdown, m.MaxDrawdownPct = Drawdown(curve)
	m.SharpeRatio = Sharpe(curve, opts)
	return m
}

// ProfitFactor is gross profit over gross loss. It is +Inf when there is
// profit but no loss, and 0 when there is neither.
func ProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return grossProfit / grossLoss
}

// Normalize returns the curve sorted by time with duplicate timestamps
// collapsed to the last occurrence. The input is not modified.
func Normalize(equity []market.EquityPoint) []market.EquityPoint {
	sorted := make([]market.EquityPoint, len(equity))
	copy(sorted, equity)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for i, p := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Time.Equal(p.Time) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Drawdown returns the largest peak-to-trough decline of a normalized curve
// as a positive amount and as a percentage of the peak it fell from.
func Drawdown(curve []market.EquityPoint) (abs, pct float64) {
	if len(curve) < 2 {
		return 0, 0
	}

	peak := curve[0].Equity
	worst, worstPeak := 0.0, peak
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := p.Equity - peak; dd < worst {
			worst, worstPeak = dd, peak
		}
	}

	abs = math.Abs(worst)
	if worstPeak > 0 {
		pct = abs / worstPeak * 100
	}
	return abs, pct
}

// Sharpe annualizes the mean excess period return over its sample standard
// deviation. Fewer than two returns or zero variance yields 0.
func Sharpe(curve []market.EquityPoint, opts Options) float64 {
	ppy := opts.PeriodsPerYear
	if ppy <= 0 {
		ppy = market.DefaultPeriodsPerYear
	}

	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	rf := math.Pow(1+opts.RiskFreeRate, 1/ppy) - 1
	for i := range returns {
		returns[i] -= rf
	}

	mean, std := meanStd(returns)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(ppy)
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

// Rounded returns a copy rounded for display: money to 4 places,
// percentages and profit factor to 2, Sharpe to 3.
func (m Metrics) Rounded() Metrics {
	r := m
	r.FinalEquity = round(m.FinalEquity, 4)
	r.TotalPnL = round(m.TotalPnL, 4)
	r.GrossProfit = round(m.GrossProfit, 4)
	r.GrossLoss = round(m.GrossLoss, 4)
	r.MaxDrawdown = round(m.MaxDrawdown, 4)
	r.CommissionPaid = round(m.CommissionPaid, 4)
	r.TotalBought = round(m.TotalBought, 4)
	r.TotalSold = round(m.TotalSold, 4)
	r.TotalPnLPct = round(m.TotalPnLPct, 2)
	r.WinRate = round(m.WinRate, 2)
	r.MaxDrawdownPct = round(m.MaxDrawdownPct, 2)
	r.ProfitFactor = round(m.ProfitFactor, 2)
	r.SharpeRatio = round(m.SharpeRatio, 3)
	return r
}

func round(v float64, places int32) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
