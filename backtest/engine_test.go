package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/metrics"
	"github.com/rustyeddy/tradebot/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEngine(t *testing.T, cfg strategies.Config, bars []market.Bar, opts ...Option) *Result {
	t.Helper()
	eng, err := New(cfg, opts...)
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), bars)
	require.NoError(t, err)
	return res
}

// momentumSwing rises with growing momentum after one early dip, then
// falls steadily.
func momentumSwing() []float64 {
	var closes []float64
	for i := 0; i < 60; i++ {
		x := float64(i)
		closes = append(closes, 100+0.1*x*x)
	}
	closes[2] = 100
	top := closes[59]
	for i := 1; i <= 40; i++ {
		closes = append(closes, top-5*float64(i))
	}
	return closes
}

func TestMomentumRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := strategies.Config{
		Type:     "MomentumBot",
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Settings: strategies.Settings{
			"order_quantity": 1, "rsi_period": 14,
			"macd_fast": 12, "macd_slow": 26, "macd_signal": 9,
			"rsi_oversold": 100, "rsi_overbought": 100,
		},
	}
	bars := series(momentumSwing()...)
	res := runEngine(t, cfg, bars)

	require.Len(t, res.Trades, 2)
	buy, sell := res.Trades[0], res.Trades[1]

	assert.Equal(t, market.Buy, buy.Side)
	assert.Equal(t, bars[33].Time, buy.Time, "first bar with every indicator defined")
	assert.Equal(t, bars[33].Open, buy.Price)
	assert.Nil(t, buy.RealizedPnL)

	assert.Equal(t, market.Sell, sell.Side)
	assert.True(t, sell.Time.After(bars[59].Time), "exit comes in the decline")
	assert.Contains(t, sell.Reason, "ema")
	assert.Greater(t, sell.Price, buy.Price)
	require.NotNil(t, sell.RealizedPnL)
	assert.InDelta(t, sell.Price-buy.Price, *sell.RealizedPnL, 1e-9)

	assert.Greater(t, res.Metrics.FinalEquity, res.InitialCapital)
	assert.Equal(t, 1, res.Metrics.WinningTrades)
	assert.True(t, res.Metrics.ProfitFactorInfinite())
	assert.Zero(t, res.FinalPosition)
	assert.Len(t, res.Equity, len(bars))
}

// pullback is flat, then a steady climb, one sharp down bar and a quick
// recovery. On the down bar a fast RSI is oversold while MACD and the EMAs
// still point up.
func pullback() []float64 {
	var closes []float64
	for i := 0; i < 40; i++ {
		closes = append(closes, 100)
	}
	for i := 1; i <= 8; i++ {
		closes = append(closes, 100+float64(i))
	}
	closes = append(closes, 102)
	for i := 1; i <= 6; i++ {
		closes = append(closes, 102+1.5*float64(i))
	}
	return closes
}

func TestMomentumCombinedEntry(t *testing.T) {
	t.Parallel()

	cfg := strategies.Config{
		Type:     strategies.Momentum,
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Settings: strategies.Settings{
			"order_quantity": 1, "rsi_period": 3,
			"macd_fast": 12, "macd_slow": 26, "macd_signal": 9,
		},
	}
	bars := series(pullback()...)
	res := runEngine(t, cfg, bars, WithFillTiming(NextBar))

	require.Len(t, res.Trades, 2)
	buy, sell := res.Trades[0], res.Trades[1]

	// Decided on the down bar (48), filled at the next open.
	assert.Equal(t, market.Buy, buy.Side)
	assert.Equal(t, bars[49].Time, buy.Time)
	assert.Equal(t, 102.0, buy.Price)
	assert.Contains(t, buy.Reason, "below 30.00")
	assert.Contains(t, buy.Reason, "macd over signal")

	// RSI passes 70 on bar 52.
	assert.Equal(t, market.Sell, sell.Side)
	assert.Equal(t, bars[53].Time, sell.Time)
	assert.Equal(t, 108.0, sell.Price)
	assert.Contains(t, sell.Reason, "above 70.00")
	require.NotNil(t, sell.RealizedPnL)
	assert.InDelta(t, 6.0, *sell.RealizedPnL, 1e-9)
	assert.Zero(t, res.FinalPosition)
}

func TestGridCrossingScenario(t *testing.T) {
	t.Parallel()

	res := runEngine(t, gridConfig("crossing"), series(100, 92, 100, 108, 100))

	type leg struct {
		side  market.Side
		price float64
	}
	var got []leg
	for _, tr := range res.Trades {
		got = append(got, leg{tr.Side, tr.Price})
	}
	assert.Equal(t, []leg{
		{market.Buy, 95},
		{market.Sell, 100},
		{market.Buy, 100},
		{market.Close, 100},
	}, got)

	assert.Equal(t, 5.0, res.Trades[0].Quantity)
	require.NotNil(t, res.Trades[1].RealizedPnL)
	assert.InDelta(t, 25.0, *res.Trades[1].RealizedPnL, 1e-9)
	assert.Equal(t, t0.Add(time.Hour), res.Trades[0].Time, "limit fills on the crossing bar")

	states := res.StrategyState["states"].([]string)
	assert.Equal(t, "empty", states[1], "95 reset after its paired sell")

	assert.InDelta(t, 10023.525, res.FinalCash, 1e-9)
	assert.InDelta(t, 10023.525, res.Metrics.FinalEquity, 1e-9)
	assert.True(t, res.Metrics.ProfitFactorInfinite())
}

func TestDCAScenario(t *testing.T) {
	t.Parallel()

	bars := flat(72, 50)
	res := runEngine(t, dcaConfig(), bars, WithCloseAtEnd(false))

	require.Len(t, res.Trades, 3)
	for i, tr := range res.Trades {
		assert.Equal(t, bars[24*i].Time, tr.Time)
		assert.Equal(t, market.Buy, tr.Side)
		assert.Equal(t, 2.0, tr.Quantity)
		assert.InDelta(t, 0.1, tr.Commission, 1e-12)
	}
	assert.InDelta(t, 6.0, res.FinalPosition, 1e-12)
	assert.Equal(t, 300.0, res.StrategyState["total_invested"])
	assert.InDelta(t, 10000-300.3, res.FinalCash, 1e-9)

	closed := runEngine(t, dcaConfig(), bars)
	require.Len(t, closed.Trades, 4)
	last := closed.Trades[3]
	assert.Equal(t, market.Close, last.Side)
	assert.Equal(t, 6.0, last.Quantity)
	assert.Zero(t, last.Commission)
	assert.Zero(t, closed.FinalPosition)
}

func TestNextBarTiming(t *testing.T) {
	t.Parallel()

	bars := flat(72, 50)
	res := runEngine(t, dcaConfig(), bars, WithFillTiming(NextBar), WithCloseAtEnd(false))

	require.Len(t, res.Trades, 3)
	for i, tr := range res.Trades {
		assert.Equal(t, bars[24*i+1].Time, tr.Time)
	}
	assert.Equal(t, NextBar, res.FillTiming)
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	bars := series(100, 96, 93, 97, 102, 107, 104, 99, 94, 91, 95, 101, 106, 109, 103, 98, 92, 97, 104, 111)
	eng, err := New(gridConfig("ladder"), WithSeed(99))
	require.NoError(t, err)

	a, err := eng.Run(context.Background(), bars)
	require.NoError(t, err)
	b, err := eng.Run(context.Background(), bars)
	require.NoError(t, err)
	require.NotEmpty(t, a.Trades)
	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.Equity, b.Equity)
	assert.Equal(t, a.Metrics, b.Metrics)

	other, err := New(gridConfig("ladder"), WithSeed(99))
	require.NoError(t, err)
	c, err := other.Run(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, a.Trades, c.Trades)
}

func TestLedgerInvariants(t *testing.T) {
	t.Parallel()

	bars := series(100, 96, 93, 89, 92, 97, 102, 107, 111, 106, 101, 94, 90, 95, 100, 104, 108, 103, 97, 99)
	for _, cfg := range []strategies.Config{gridConfig("ladder"), gridConfig("crossing"), dcaConfig()} {
		res := runEngine(t, cfg, bars)

		for _, p := range res.Equity {
			assert.GreaterOrEqual(t, p.Cash, 0.0)
			assert.GreaterOrEqual(t, p.Position, 0.0)
		}

		var spent, received float64
		for _, tr := range res.Trades {
			switch tr.Side {
			case market.Buy:
				spent += tr.Notional + tr.Commission
			default:
				received += tr.Notional - tr.Commission
			}
		}
		assert.Zero(t, res.FinalPosition, "terminal close flattens")
		assert.InDelta(t, res.InitialCapital-res.FinalCash, spent-received, 1e-6, string(cfg.Type))
	}
}

func TestEmptyBars(t *testing.T) {
	t.Parallel()

	res := runEngine(t, dcaConfig(), nil)
	assert.True(t, res.NoData)
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.Equity)
	assert.Equal(t, 0, res.Metrics.TotalTrades)
	assert.Equal(t, 0.0, res.Metrics.ProfitFactor)
	assert.Equal(t, 0.0, res.Metrics.SharpeRatio)
	assert.Equal(t, res.InitialCapital, res.Metrics.FinalEquity)
}

func TestShortHistoryNeverTrades(t *testing.T) {
	t.Parallel()

	cfg := strategies.Config{Type: strategies.Momentum, Settings: strategies.Settings{
		"order_quantity": 1, "rsi_period": 14, "macd_fast": 12, "macd_slow": 26, "macd_signal": 9,
	}}
	res := runEngine(t, cfg, series(5, 4, 3, 2, 1))
	assert.Empty(t, res.Trades)
	assert.Len(t, res.Equity, 5)
	assert.Equal(t, false, res.StrategyState["warm"])
}

func TestConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  strategies.Config
		opts []Option
	}{
		{"missing keys", strategies.Config{Type: strategies.Grid, Settings: strategies.Settings{"num_grids": 5}}, nil},
		{"bad bounds", strategies.Config{Type: strategies.Grid, Settings: strategies.Settings{
			"lower_bound": 110, "upper_bound": 90, "num_grids": 5, "total_investment": 100}}, nil},
		{"macd periods", strategies.Config{Type: strategies.Momentum, Settings: strategies.Settings{
			"order_quantity": 1, "rsi_period": 14, "macd_fast": 26, "macd_slow": 12, "macd_signal": 9}}, nil},
		{"unknown archetype", strategies.Config{Type: "arbitrage"}, nil},
		{"commission", dcaConfig(), []Option{WithCommission(1.5)}},
		{"capital", dcaConfig(), []Option{WithInitialCapital(0)}},
		{"interval", strategies.Config{Type: strategies.DCA, Interval: "7x", Settings: dcaConfig().Settings}, nil},
		{"fill timing", dcaConfig(), []Option{WithFillTiming("eventually")}},
	}
	for _, tt := range tests {
		_, err := New(tt.cfg, tt.opts...)
		require.Error(t, err, tt.name)
		assert.Equal(t, KindConfig, KindOf(err), tt.name)
		assert.True(t, IsBadInput(err), tt.name)
	}
}

func TestUnorderedBars(t *testing.T) {
	t.Parallel()

	bars := flat(4, 50)
	bars[2].Time = bars[1].Time

	eng, err := New(dcaConfig())
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), bars)
	assert.Nil(t, res)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, KindData, berr.Kind)
	assert.Equal(t, 2, berr.Index)
	assert.True(t, berr.Time.Equal(bars[2].Time))
	assert.ErrorIs(t, err, market.ErrUnordered)
	assert.True(t, IsBadInput(err))
}

func TestCancellationReturnsPartialResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &scripted{onBar: func(i int) {
		if i == 5 {
			cancel()
		}
	}}

	eng, err := New(dcaConfig(), WithPolicyFunc(p.self))
	require.NoError(t, err)
	res, err := eng.Run(ctx, flat(20, 50))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.False(t, IsBadInput(err))
	require.NotNil(t, res)
	assert.Len(t, res.Equity, 6)
	assert.Equal(t, 6, p.n)
}

func TestPolicyPanicIsInternal(t *testing.T) {
	t.Parallel()

	p := &scripted{onBar: func(i int) {
		if i == 3 {
			panic("boom")
		}
	}}
	eng, err := New(dcaConfig(), WithPolicyFunc(p.self))
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), flat(10, 50))
	assert.Nil(t, res)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, KindInternal, berr.Kind)
	assert.Equal(t, 3, berr.Index)
	assert.Equal(t, t0.Add(3*time.Hour), berr.Time)
	assert.False(t, IsBadInput(err))
}

func TestInvalidDecisionAborts(t *testing.T) {
	t.Parallel()

	p := &scripted{at: map[int]strategies.Decision{
		2: {Side: market.Buy, Type: market.Limit, Quantity: 1},
	}}
	eng, err := New(dcaConfig(), WithPolicyFunc(p.self))
	require.NoError(t, err)
	_, err = eng.Run(context.Background(), flat(5, 50))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, 3, p.n, "no bar after the fault is processed")
}

func TestRejectedFills(t *testing.T) {
	t.Parallel()

	p := &scripted{at: map[int]strategies.Decision{
		1: {Side: market.Buy, Type: market.Market, Quantity: 1000, Ref: "too big"},
		2: {Side: market.Sell, Type: market.Limit, Quantity: 1, LimitPrice: 40, Ref: "nothing to sell"},
		3: {Side: market.Buy, Type: market.Market, Quantity: 1, Ref: "ok"},
	}}
	eng, err := New(dcaConfig(), WithPolicyFunc(p.self), WithCloseAtEnd(false))
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), flat(6, 50))
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, market.Buy, res.Trades[0].Side)
	assert.Equal(t, 50.0, res.Trades[0].Price)
	assert.Equal(t, t0.Add(3*time.Hour), res.Trades[0].Time)

	// The resting sell limit fills once the buy provides a position.
	assert.Equal(t, market.Sell, res.Trades[1].Side)
	assert.Equal(t, 40.0, res.Trades[1].Price)
	assert.Equal(t, t0.Add(4*time.Hour), res.Trades[1].Time)

	require.Len(t, p.canceled, 1)
	assert.Equal(t, "too big", p.canceled[0].Ref)
	require.Len(t, p.fills, 2)
	assert.Equal(t, "ok", p.fills[0].Decision.Ref)
	assert.Empty(t, res.OpenOrders)
}

func TestLeftoverOrdersExpire(t *testing.T) {
	t.Parallel()

	p := &scripted{at: map[int]strategies.Decision{
		0: {Side: market.Buy, Type: market.Limit, Quantity: 1, LimitPrice: 10, Ref: "deep"},
	}}
	eng, err := New(dcaConfig(), WithPolicyFunc(p.self))
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), flat(3, 50))
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	require.Len(t, res.OpenOrders, 1)
	assert.Equal(t, 10.0, res.OpenOrders[0].LimitPrice)
	require.Len(t, p.canceled, 1)
	assert.Equal(t, "deep", p.canceled[0].Ref)
}

func TestEachRunGetsFreshPolicy(t *testing.T) {
	t.Parallel()

	var built []*scripted
	eng, err := New(dcaConfig(), WithPolicyFunc(func() strategies.Policy {
		p := &scripted{at: map[int]strategies.Decision{0: {Side: market.Buy, Type: market.Market, Quantity: 1}}}
		built = append(built, p)
		return p
	}))
	require.NoError(t, err)

	first, err := eng.Run(context.Background(), flat(10, 50))
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), flat(10, 50))
	require.NoError(t, err)

	require.Len(t, built, 2)
	for _, p := range built {
		assert.Equal(t, 10, p.n)
		assert.Len(t, p.fills, 1)
	}
	assert.Equal(t, first.Trades, second.Trades)

	// Config-built policies restart as well: DCA buys again on the first bar.
	eng, err = New(dcaConfig())
	require.NoError(t, err)
	a, err := eng.Run(context.Background(), flat(48, 50))
	require.NoError(t, err)
	b, err := eng.Run(context.Background(), flat(48, 50))
	require.NoError(t, err)
	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestMetricsAnnualization(t *testing.T) {
	t.Parallel()

	eng, err := New(dcaConfig())
	require.NoError(t, err)
	assert.Equal(t, 8760.0, eng.metrics.PeriodsPerYear)

	eng, err = New(dcaConfig(), WithMetrics(metrics.Options{PeriodsPerYear: 252, RiskFreeRate: 0.02}))
	require.NoError(t, err)
	assert.Equal(t, 252.0, eng.metrics.PeriodsPerYear)
}
