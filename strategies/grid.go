package strategies

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rustyeddy/tradebot/grid"
	"github.com/rustyeddy/tradebot/market"
)

// GridMode picks how the grid turns level crossings into orders.
type GridMode string

const (
	// GridCrossing watches closes cross levels and places one order per bar.
	GridCrossing GridMode = "crossing"
	// GridLadder rests limit orders on every level and re-arms each fill with
	// the opposite order one level away.
	GridLadder GridMode = "ladder"
)

// GridConfig parameterizes the grid policy.
type GridConfig struct {
	Lower float64
	Upper float64
	// Levels is the number of price levels, ends included.
	Levels          int
	Kind            grid.Kind
	Mode            GridMode
	TotalInvestment float64
	// OrderQuantity overrides the size derived from TotalInvestment.
	OrderQuantity float64
}

type levelState int

const (
	levelEmpty levelState = iota
	levelPendingBuy
	levelOccupied
	levelPendingSell
)

func (s levelState) String() string {
	switch s {
	case levelPendingBuy:
		return "pending-buy"
	case levelOccupied:
		return "occupied"
	case levelPendingSell:
		return "pending-sell"
	}
	return "empty"
}

// GridPolicy trades a fixed price ladder.
type GridPolicy struct {
	cfg    GridConfig
	levels []float64
	states []levelState

	qty  float64
	last float64
}

// NewGrid validates cfg and computes the ladder.
func NewGrid(cfg GridConfig) (*GridPolicy, error) {
	if cfg.Levels < 2 {
		return nil, invalid(Grid, "num_grids", "need at least 2 levels, got %d", cfg.Levels)
	}
	if cfg.Mode == "" {
		cfg.Mode = GridCrossing
	}
	if cfg.Mode != GridCrossing && cfg.Mode != GridLadder {
		return nil, invalid(Grid, "grid_mode", "unknown mode %q", cfg.Mode)
	}
	if cfg.OrderQuantity < 0 {
		return nil, invalid(Grid, "order_quantity", "must not be negative, got %g", cfg.OrderQuantity)
	}
	if cfg.OrderQuantity == 0 && cfg.TotalInvestment <= 0 {
		return nil, invalid(Grid, "total_investment", "must be positive, got %g", cfg.TotalInvestment)
	}

	levels, err := grid.Levels(cfg.Kind, cfg.Lower, cfg.Upper, cfg.Levels-1)
	if err != nil {
		return nil, &ConfigError{Archetype: Grid, Field: "lower_bound", Err: err}
	}
	return &GridPolicy{
		cfg:    cfg,
		levels: levels,
		states: make([]levelState, len(levels)),
	}, nil
}

func newGridFromConfig(cfg Config) (Policy, error) {
	s := cfg.Settings
	if missing := s.Missing("lower_bound|lower_price", "upper_bound|upper_price", "num_grids", "total_investment"); len(missing) > 0 {
		return nil, &ConfigError{Archetype: Grid, Missing: missing, Err: ErrMissingSetting}
	}

	var c GridConfig
	var errs []error
	var err error
	c.Lower, err = s.Float("lower_bound|lower_price", 0)
	errs = append(errs, err)
	c.Upper, err = s.Float("upper_bound|upper_price", 0)
	errs = append(errs, err)
	c.Levels, err = s.Int("num_grids", 0)
	errs = append(errs, err)
	c.TotalInvestment, err = s.Float("total_investment", 0)
	errs = append(errs, err)
	c.OrderQuantity, err = s.Float("order_quantity", 0)
	errs = append(errs, err)
	c.Kind, err = grid.ParseKind(s.String("grid_type", ""))
	errs = append(errs, err)
	c.Mode = GridMode(strings.ToLower(s.String("grid_mode", string(GridCrossing))))
	if err := errors.Join(errs...); err != nil {
		return nil, &ConfigError{Archetype: Grid, Err: err}
	}
	return NewGrid(c)
}

func (g *GridPolicy) Name() string { return string(Grid) }

// Levels returns a copy of the ladder.
func (g *GridPolicy) Levels() []float64 {
	out := make([]float64, len(g.levels))
	copy(out, g.levels)
	return out
}

// Quantity is the per-level order size fixed at Init.
func (g *GridPolicy) Quantity() float64 { return g.qty }

// Init sizes the grid against the first close. In ladder mode it also
// returns the resting orders: buys below the start price, sells above.
func (g *GridPolicy) Init(first market.Bar, _ LedgerView) ([]Decision, error) {
	start := first.Close
	g.last = start

	g.qty = g.cfg.OrderQuantity
	if g.qty == 0 {
		buys := grid.CountBelow(g.levels, start)
		if buys == 0 {
			buys = len(g.levels)
		}
		qty, err := grid.OrderSize(g.cfg.TotalInvestment, buys, start)
		if err != nil {
			return nil, &ConfigError{Archetype: Grid, Field: "total_investment", Err: err}
		}
		g.qty = qty
	}

	if g.cfg.Mode != GridLadder {
		return nil, nil
	}
	var out []Decision
	for i, lv := range g.levels {
		switch {
		case lv < start:
			out = append(out, g.order(market.Buy, i, g.qty, "ladder"))
		case lv > start:
			out = append(out, g.order(market.Sell, i, g.qty, "ladder"))
		}
	}
	return out, nil
}

// Decide detects crossings between the previous and current close. Only
// crossing mode trades here; the ladder is driven by fills.
func (g *GridPolicy) Decide(window []market.Bar, _ LedgerView) (*Decision, error) {
	if len(window) == 0 || g.cfg.Mode != GridCrossing {
		return nil, nil
	}
	prev, price := g.last, window[len(window)-1].Close
	g.last = price

	switch {
	case price < prev:
		for i, lv := range g.levels {
			if prev > lv && lv >= price && g.states[i] == levelEmpty {
				g.states[i] = levelPendingBuy
				d := g.order(market.Buy, i, g.qty, "cross down")
				return &d, nil
			}
		}
	case price > prev:
		for i, lv := range g.levels {
			if !(prev < lv && lv <= price) {
				continue
			}
			j := g.occupiedBelow(i)
			if j < 0 {
				continue
			}
			g.states[j] = levelPendingSell
			d := g.order(market.Sell, i, g.qty, "cross up")
			d.Ref = strconv.Itoa(j)
			d.Reason = fmt.Sprintf("cross up %.8g closes level %.8g", lv, g.levels[j])
			return &d, nil
		}
	}
	return nil, nil
}

// occupiedBelow returns the highest occupied level under i, or -1.
func (g *GridPolicy) occupiedBelow(i int) int {
	for j := i - 1; j >= 0; j-- {
		if g.states[j] == levelOccupied {
			return j
		}
	}
	return -1
}

func (g *GridPolicy) OnFill(ev FillEvent) []Decision {
	i, ok := g.ref(ev.Decision.Ref)
	if !ok {
		return nil
	}

	if g.cfg.Mode == GridCrossing {
		switch ev.Decision.Side {
		case market.Buy:
			g.states[i] = levelOccupied
		case market.Sell:
			g.states[i] = levelEmpty
		}
		return nil
	}

	switch ev.Decision.Side {
	case market.Buy:
		g.states[i] = levelOccupied
		if i+1 < len(g.levels) {
			return []Decision{g.order(market.Sell, i+1, ev.Quantity, "pair")}
		}
	case market.Sell:
		if i > 0 {
			g.states[i-1] = levelEmpty
			return []Decision{g.order(market.Buy, i-1, ev.Quantity, "pair")}
		}
	}
	return nil
}

func (g *GridPolicy) OnCancel(d Decision) {
	i, ok := g.ref(d.Ref)
	if !ok {
		return
	}
	switch g.states[i] {
	case levelPendingBuy:
		g.states[i] = levelEmpty
	case levelPendingSell:
		g.states[i] = levelOccupied
	}
}

func (g *GridPolicy) State() map[string]any {
	states := make([]string, len(g.states))
	for i, s := range g.states {
		states[i] = s.String()
	}
	return map[string]any{
		"mode":     string(g.cfg.Mode),
		"levels":   g.Levels(),
		"states":   states,
		"quantity": g.qty,
	}
}

func (g *GridPolicy) order(side market.Side, level int, qty float64, why string) Decision {
	return Decision{
		Side:       side,
		Type:       market.Limit,
		Quantity:   qty,
		LimitPrice: g.levels[level],
		Reason:     fmt.Sprintf("%s level %.8g", why, g.levels[level]),
		Ref:        strconv.Itoa(level),
	}
}

func (g *GridPolicy) ref(s string) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= len(g.levels) {
		return 0, false
	}
	return i, true
}
