package backtest

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/tradebot/metrics"
	"github.com/rustyeddy/tradebot/strategies"
	"go.uber.org/zap"
)

// DefaultInitialCapital is the starting cash when none is configured.
const DefaultInitialCapital = 10000.0

// FillTiming selects when an order created by a decision is first matched.
type FillTiming string

const (
	// SameBar matches new decisions against the bar that produced them, so
	// MARKET orders fill at that bar's open. Results match the historical
	// engine but the decision has seen the bar's close.
	SameBar FillTiming = "same-bar"
	// NextBar leaves new decisions for the next bar's fill pass.
	NextBar FillTiming = "next-bar"
)

// ParseFillTiming accepts "same-bar" or "next-bar"; empty means SameBar.
func ParseFillTiming(s string) (FillTiming, error) {
	switch FillTiming(strings.ToLower(strings.TrimSpace(s))) {
	case "", SameBar, "same_bar", "samebar":
		return SameBar, nil
	case NextBar, "next_bar", "nextbar":
		return NextBar, nil
	}
	return "", fmt.Errorf("unknown fill timing %q", s)
}

// Option configures an Engine.
type Option func(*Engine)

func WithInitialCapital(c float64) Option {
	return func(e *Engine) { e.capital = c }
}

// WithCommission sets the fractional fee charged on every fill's notional.
func WithCommission(rate float64) Option {
	return func(e *Engine) { e.commission = rate }
}

func WithFillTiming(t FillTiming) Option {
	return func(e *Engine) { e.timing = t }
}

// WithCloseAtEnd controls the synthetic CLOSE after the last bar.
func WithCloseAtEnd(on bool) Option {
	return func(e *Engine) { e.closeAtEnd = on }
}

// WithSeed seeds order and trade IDs.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithMetrics overrides the Sharpe annualization derived from the interval.
func WithMetrics(opts metrics.Options) Option {
	return func(e *Engine) { e.metrics = &opts }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPolicyFunc builds each run's policy with fn instead of from the
// config. fn is called once per Run.
func WithPolicyFunc(fn func() strategies.Policy) Option {
	return func(e *Engine) { e.newPolicy = fn }
}
