package journal

import (
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/metrics"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func pnl(v float64) *float64 { return &v }

func sampleRun(id string, created time.Time) Run {
	return Run{
		RunID:          id,
		Created:        created,
		Strategy:       "grid",
		Symbol:         "BTCUSDT",
		Interval:       "1h",
		Dataset:        "testdata/btc.csv",
		Config:         []byte(`{"archetype":"grid"}`),
		FillTiming:     "same-bar",
		Start:          t0,
		End:            t0.Add(3 * time.Hour),
		Bars:           4,
		InitialCapital: 10000,
		CommissionRate: 0.001,
		FinalCash:      10023.525,
		FinalPosition:  0,
		Metrics: metrics.Metrics{
			TotalTrades:    2,
			ClosedTrades:   1,
			WinningTrades:  1,
			InitialCapital: 10000,
			FinalEquity:    10023.525,
			TotalPnL:       23.525,
			TotalPnLPct:    0.24,
			WinRate:        100,
			GrossProfit:    25,
			ProfitFactor:   0,
			MaxDrawdown:    1.5,
			MaxDrawdownPct: 0.01,
			SharpeRatio:    1.234,
			CommissionPaid: 0.975,
			TotalBought:    475,
			TotalSold:      500,
			Start:          t0,
			End:            t0.Add(3 * time.Hour),
		},
		Duration: 1500 * time.Microsecond,
		Trades: []market.TradeRecord{
			{ID: "T1", OrderID: "O1", Time: t0, Side: market.Buy, Type: market.Limit, Price: 95, Quantity: 5,
				Notional: 475, Commission: 0.475, AvgEntryPrice: 95, CashAfter: 9524.525, PositionAfter: 5},
			{ID: "T2", OrderID: "O2", Time: t0.Add(time.Hour), Side: market.Sell, Type: market.Limit, Price: 100, Quantity: 5,
				Notional: 500, Commission: 0.5, AvgEntryPrice: 95, CashAfter: 10024.025, PositionAfter: 0,
				RealizedPnL: pnl(25), Reason: "grid level 1"},
		},
		Equity: []market.EquityPoint{
			{Time: t0, Equity: 9999.525, Cash: 9524.525, Position: 5},
			{Time: t0.Add(time.Hour), Equity: 10024.025, Cash: 10024.025},
		},
		Notes: []string{"first", "second"},
	}
}
