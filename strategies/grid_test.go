package strategies

import (
	"testing"

	"github.com/rustyeddy/tradebot/grid"
	"github.com/rustyeddy/tradebot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrid(t *testing.T, mode GridMode) *GridPolicy {
	t.Helper()
	g, err := NewGrid(GridConfig{
		Lower: 90, Upper: 110, Levels: 5,
		Kind: grid.Arithmetic, Mode: mode, TotalInvestment: 1000,
	})
	require.NoError(t, err)
	return g
}

func fill(d Decision) FillEvent {
	return FillEvent{Decision: d, Price: d.LimitPrice, Quantity: d.Quantity, Notional: d.LimitPrice * d.Quantity}
}

func TestGridRejectsBadBounds(t *testing.T) {
	t.Parallel()

	_, err := NewGrid(GridConfig{Lower: 110, Upper: 90, Levels: 5, TotalInvestment: 1000})
	assert.ErrorIs(t, err, grid.ErrInvalidBounds)

	_, err = NewGrid(GridConfig{Lower: 90, Upper: 110, Levels: 1, TotalInvestment: 1000})
	assert.Error(t, err)

	_, err = NewGrid(GridConfig{Lower: 90, Upper: 110, Levels: 5, TotalInvestment: 1000, Mode: "spiral"})
	assert.Error(t, err)
}

func TestGridCrossingRoundTrip(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, GridCrossing)
	assert.Equal(t, []float64{90, 95, 100, 105, 110}, g.Levels())

	bars := hourlyBars(100, 92, 100, 108, 100)
	orders, err := g.Init(bars[0], LedgerView{Cash: 10000})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.InDelta(t, 5.0, g.Quantity(), 1e-12)

	d, err := g.Decide(bars[:1], LedgerView{})
	require.NoError(t, err)
	assert.Nil(t, d, "no move on the first bar")

	// 100 -> 92 crosses 95 downward.
	d, err = g.Decide(bars[:2], LedgerView{})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, market.Buy, d.Side)
	assert.Equal(t, market.Limit, d.Type)
	assert.Equal(t, 95.0, d.LimitPrice)
	assert.Equal(t, "pending-buy", g.State()["states"].([]string)[1])
	g.OnFill(fill(*d))
	assert.Equal(t, "occupied", g.State()["states"].([]string)[1])

	// 92 -> 100 crosses 95 (itself occupied) and 100, which closes 95.
	d, err = g.Decide(bars[:3], LedgerView{Position: 5})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, market.Sell, d.Side)
	assert.Equal(t, 100.0, d.LimitPrice)
	assert.Equal(t, "1", d.Ref)
	g.OnFill(fill(*d))
	assert.Equal(t, "empty", g.State()["states"].([]string)[1])

	// 100 -> 108 crosses 105 with nothing left to close.
	d, err = g.Decide(bars[:4], LedgerView{})
	require.NoError(t, err)
	assert.Nil(t, d)

	// 108 -> 100 crosses 105 and 100; the lowest crossed level buys first.
	d, err = g.Decide(bars[:5], LedgerView{})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, market.Buy, d.Side)
	assert.Equal(t, 100.0, d.LimitPrice)
}

func TestGridCancelRevertsPending(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, GridCrossing)
	bars := hourlyBars(100, 92)
	_, err := g.Init(bars[0], LedgerView{})
	require.NoError(t, err)

	d, err := g.Decide(bars, LedgerView{})
	require.NoError(t, err)
	require.NotNil(t, d)

	g.OnCancel(*d)
	assert.Equal(t, "empty", g.State()["states"].([]string)[1])
}

func TestGridLadderPairsFills(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t, GridLadder)
	orders, err := g.Init(market.Bar{Close: 100}, LedgerView{Cash: 10000})
	require.NoError(t, err)
	require.Len(t, orders, 4, "level at the start price is skipped")

	got := map[float64]market.Side{}
	for _, o := range orders {
		assert.Equal(t, market.Limit, o.Type)
		got[o.LimitPrice] = o.Side
	}
	assert.Equal(t, map[float64]market.Side{
		90: market.Buy, 95: market.Buy, 105: market.Sell, 110: market.Sell,
	}, got)

	d, err := g.Decide([]market.Bar{{Close: 80}}, LedgerView{})
	require.NoError(t, err)
	assert.Nil(t, d, "ladder mode never decides per bar")

	// Buy at 95 re-arms a sell one level up.
	next := g.OnFill(fill(orders[1]))
	require.Len(t, next, 1)
	assert.Equal(t, market.Sell, next[0].Side)
	assert.Equal(t, 100.0, next[0].LimitPrice)

	// That sell re-arms a buy one level down.
	back := g.OnFill(fill(next[0]))
	require.Len(t, back, 1)
	assert.Equal(t, market.Buy, back[0].Side)
	assert.Equal(t, 95.0, back[0].LimitPrice)

	// Nothing is placed past the ends of the range.
	top := Decision{Side: market.Buy, Type: market.Limit, LimitPrice: 110, Quantity: 1, Ref: "4"}
	assert.Empty(t, g.OnFill(fill(top)))
	bottom := Decision{Side: market.Sell, Type: market.Limit, LimitPrice: 90, Quantity: 1, Ref: "0"}
	assert.Empty(t, g.OnFill(fill(bottom)))
}
