// Package backtest replays historical bars through a strategy policy
// against a simulated spot account and reports the trade log, equity curve
// and performance metrics.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/internal/logging"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/metrics"
	"github.com/rustyeddy/tradebot/sim"
	"github.com/rustyeddy/tradebot/strategies"
	"go.uber.org/zap"
)

// Engine runs one strategy configuration over bar sequences. Each call to
// Run starts from a fresh account, order book and policy, so an Engine may
// be reused and runs do not share state.
type Engine struct {
	cfg        strategies.Config
	capital    float64
	commission float64
	timing     FillTiming
	closeAtEnd bool
	seed       int64
	metrics    *metrics.Options
	log        *zap.Logger
	newPolicy  func() strategies.Policy
}

// New validates the configuration and options. Failures are KindConfig
// errors; no run is attempted.
func New(cfg strategies.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:        cfg,
		capital:    DefaultInitialCapital,
		commission: sim.DefaultCommission,
		timing:     SameBar,
		closeAtEnd: true,
		seed:       id.DefaultSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrNop(e.log)

	if !(e.capital > 0) || math.IsInf(e.capital, 0) {
		return nil, configError("new", fmt.Errorf("initial capital must be positive, got %g", e.capital))
	}
	if !(e.commission >= 0 && e.commission < 1) {
		return nil, configError("new", fmt.Errorf("commission rate must be in [0, 1), got %g", e.commission))
	}
	timing, err := ParseFillTiming(string(e.timing))
	if err != nil {
		return nil, configError("new", err)
	}
	e.timing = timing

	if e.metrics == nil {
		ppy, err := market.PeriodsPerYear(cfg.Interval)
		if err != nil {
			return nil, configError("new", err)
		}
		e.metrics = &metrics.Options{PeriodsPerYear: ppy}
	}

	if e.newPolicy == nil {
		if _, err := strategies.New(cfg); err != nil {
			return nil, configError("new", err)
		}
	}
	return e, nil
}

// Run simulates bars, which must be strictly ascending in time. An empty
// sequence yields a NoData result. When ctx ends mid-run the partial result
// is returned along with a KindCanceled error.
func (e *Engine) Run(ctx context.Context, bars []market.Bar) (res *Result, err error) {
	started := time.Now()

	var policy strategies.Policy
	if e.newPolicy != nil {
		policy = e.newPolicy()
	} else if policy, err = strategies.New(e.cfg); err != nil {
		return nil, configError("run", err)
	}
	if err := market.ValidateSeries(bars); err != nil {
		var oe *market.OrderError
		errors.As(err, &oe)
		return nil, &Error{Kind: KindData, Op: "run", Index: oe.Index, Time: oe.Time, Err: err}
	}

	r := &run{
		e:      e,
		policy: policy,
		bars:   bars,
		ledger: sim.NewLedger(e.capital, e.commission),
		ids:    id.NewGenerator(e.seed),
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, r.fault(fmt.Errorf("panic: %v", p))
		}
	}()

	log := e.log.With(zap.String("strategy", policy.Name()), zap.String("symbol", e.cfg.Symbol))
	log.Info("backtest started", zap.Int("bars", len(bars)), zap.String("fill_timing", string(e.timing)))

	if len(bars) == 0 {
		res = r.result(started)
		res.NoData = true
		log.Info("backtest has no data")
		return res, nil
	}

	if err := r.init(); err != nil {
		return nil, err
	}
	for i := range bars {
		if err := ctx.Err(); err != nil {
			r.open = r.book.Orders()
			log.Warn("backtest canceled", zap.Int("bar", i), zap.Error(err))
			return r.result(started), &Error{Kind: KindCanceled, Op: "run", Index: i, Time: bars[i].Time, Err: err}
		}
		if err := r.step(i); err != nil {
			log.Error("backtest aborted", zap.Error(err))
			return nil, err
		}
	}
	r.finish()

	res = r.result(started)
	log.Info("backtest finished",
		zap.Int("trades", len(res.Trades)),
		zap.Float64("final_equity", res.Metrics.FinalEquity),
		zap.Duration("took", res.Duration))
	return res, nil
}

// run is the state of a single simulation.
type run struct {
	e      *Engine
	policy strategies.Policy
	bars   []market.Bar

	ledger *sim.Ledger
	book   sim.Book
	ids    *id.Generator

	trades []market.TradeRecord
	equity []market.EquityPoint
	open   []sim.Order
	index  int
}

func (r *run) view() strategies.LedgerView {
	return strategies.LedgerView{
		Cash:          r.ledger.Cash(),
		Position:      r.ledger.Position(),
		AvgEntryPrice: r.ledger.AvgEntryPrice(),
		OpenOrders:    r.book.Len(),
	}
}

func (r *run) fault(err error) error {
	e := &Error{Kind: KindInternal, Op: "run", Index: r.index, Err: err}
	if r.index >= 0 && r.index < len(r.bars) {
		e.Time = r.bars[r.index].Time
	}
	return e
}

// init lets the policy see the first bar and place its opening orders,
// which are eligible in the first fill pass.
func (r *run) init() error {
	in, ok := r.policy.(strategies.Initializer)
	if !ok {
		return nil
	}
	first := r.bars[0]
	ds, err := in.Init(first, r.view())
	if err != nil {
		return &Error{Kind: KindConfig, Op: "init", Index: 0, Time: first.Time, Err: err}
	}
	for _, d := range ds {
		if _, err := r.place(d, 0, first.Time); err != nil {
			return r.fault(err)
		}
	}
	return nil
}

// step advances the simulation by one bar.
func (r *run) step(i int) error {
	r.index = i
	bar := r.bars[i]

	for _, o := range r.book.Orders() {
		price, ok := sim.Match(o, bar)
		if !ok {
			continue
		}
		if err := r.execute(o, bar, price); err != nil {
			return r.fault(err)
		}
	}

	d, err := r.policy.Decide(r.bars[:i+1:i+1], r.view())
	if err != nil {
		return r.fault(fmt.Errorf("%s decide: %w", r.policy.Name(), err))
	}
	if d != nil {
		o, err := r.place(*d, i, bar.Time)
		if err != nil {
			return r.fault(err)
		}
		if r.e.timing == SameBar {
			if price, ok := sim.Match(o, bar); ok {
				if err := r.execute(o, bar, price); err != nil {
					return r.fault(err)
				}
			}
		}
	}

	r.equity = append(r.equity, market.EquityPoint{
		Time:     bar.Time,
		Equity:   r.ledger.Equity(bar.Close),
		Cash:     r.ledger.Cash(),
		Position: r.ledger.Position(),
	})
	return nil
}

// execute fills o at price. A fill the account cannot afford is skipped:
// MARKET orders are dropped and LIMIT orders stay open.
func (r *run) execute(o sim.Order, bar market.Bar, price float64) error {
	f, err := r.ledger.Apply(o, price)
	switch {
	case errors.Is(err, sim.ErrInsufficientCash), errors.Is(err, sim.ErrInsufficientPosition):
		r.e.log.Debug("fill rejected",
			zap.String("order", o.ID), zap.Int("bar", r.index), zap.Error(err))
		if o.Type == market.Market {
			r.book.Remove(o.ID)
			r.cancel(o)
		}
		return nil
	case err != nil:
		return fmt.Errorf("order %s: %w", o.ID, err)
	}

	r.book.Remove(o.ID)
	r.trades = append(r.trades, r.record(o.ID, bar.Time, o.Side, o.Type, f, o.Reason))
	r.e.log.Debug("order filled",
		zap.String("order", o.ID), zap.String("side", string(o.Side)),
		zap.Float64("price", f.Price), zap.Float64("qty", f.Quantity), zap.Int("bar", r.index))

	obs, ok := r.policy.(strategies.FillObserver)
	if !ok {
		return nil
	}
	next := obs.OnFill(strategies.FillEvent{
		Decision:   decisionOf(o),
		Time:       bar.Time,
		Price:      f.Price,
		Quantity:   f.Quantity,
		Notional:   f.Notional,
		Commission: f.Commission,
	})
	for _, d := range next {
		if _, err := r.place(d, r.index, bar.Time); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) place(d strategies.Decision, i int, t time.Time) (sim.Order, error) {
	o := sim.Order{
		ID:           r.ids.At(t),
		Side:         d.Side,
		Type:         d.Type,
		Quantity:     d.Quantity,
		QuoteAmount:  d.QuoteAmount,
		LimitPrice:   d.LimitPrice,
		CreatedAt:    t,
		CreatedIndex: i,
		Reason:       d.Reason,
		Ref:          d.Ref,
	}
	if err := o.Validate(); err != nil {
		return sim.Order{}, fmt.Errorf("%s: %w", r.policy.Name(), err)
	}
	r.book.Add(o)
	return o, nil
}

func (r *run) cancel(o sim.Order) {
	if c, ok := r.policy.(strategies.CancelObserver); ok {
		c.OnCancel(decisionOf(o))
	}
}

// finish books the terminal CLOSE at the last close and expires what is
// left in the book.
func (r *run) finish() {
	last := r.bars[len(r.bars)-1]
	r.index = len(r.bars) - 1

	if !r.e.closeAtEnd {
		r.open = r.book.Orders()
		return
	}
	if f, ok := r.ledger.Liquidate(last.Close); ok {
		r.trades = append(r.trades, r.record("", last.Time, market.Close, market.Market, f, "end of data"))
	}
	r.open = r.book.Drain()
	for _, o := range r.open {
		r.cancel(o)
	}
}

func (r *run) record(orderID string, t time.Time, side market.Side, typ market.OrderType, f sim.Fill, reason string) market.TradeRecord {
	return market.TradeRecord{
		ID:            r.ids.At(t),
		OrderID:       orderID,
		Time:          t,
		Side:          side,
		Type:          typ,
		Price:         f.Price,
		Quantity:      f.Quantity,
		Notional:      f.Notional,
		Commission:    f.Commission,
		AvgEntryPrice: f.AvgEntryPrice,
		CashAfter:     f.CashAfter,
		PositionAfter: f.PositionAfter,
		Reason:        reason,
		RealizedPnL:   f.RealizedPnL,
	}
}

func (r *run) result(started time.Time) *Result {
	res := &Result{
		Strategy:       r.policy.Name(),
		Symbol:         r.e.cfg.Symbol,
		Interval:       r.e.cfg.Interval,
		FillTiming:     r.e.timing,
		InitialCapital: r.e.capital,
		Commission:     r.e.commission,
		FinalCash:      r.ledger.Cash(),
		FinalPosition:  r.ledger.Position(),
		Metrics:        metrics.Calculate(r.trades, r.equity, r.e.capital, *r.e.metrics),
		Trades:         r.trades,
		Equity:         r.equity,
		OpenOrders:     r.open,
		Bars:           len(r.bars),
		Duration:       time.Since(started),
	}
	if s, ok := r.policy.(strategies.Stater); ok {
		res.StrategyState = s.State()
	}
	return res
}

func decisionOf(o sim.Order) strategies.Decision {
	return strategies.Decision{
		Side:        o.Side,
		Type:        o.Type,
		Quantity:    o.Quantity,
		QuoteAmount: o.QuoteAmount,
		LimitPrice:  o.LimitPrice,
		Reason:      o.Reason,
		Ref:         o.Ref,
	}
}
