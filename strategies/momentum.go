package strategies

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/sim"
)

// MomentumConfig parameterizes the RSI/MACD/EMA momentum policy.
type MomentumConfig struct {
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	EMAShort      int
	EMALong       int
	OrderQuantity float64
	// Lookback caps the window the indicators see; 0 uses all history.
	Lookback int
}

// DefaultMomentumConfig returns the conventional 14 / 12-26-9 / 9-21 setup.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		EMAShort:      9,
		EMALong:       21,
	}
}

func (c MomentumConfig) validate() error {
	if c.OrderQuantity <= 0 {
		return invalid(Momentum, "order_quantity", "must be positive, got %g", c.OrderQuantity)
	}
	if c.RSIPeriod <= 0 {
		return invalid(Momentum, "rsi_period", "must be positive, got %d", c.RSIPeriod)
	}
	if c.RSIOversold < 0 || c.RSIOverbought > 100 || c.RSIOversold > c.RSIOverbought {
		return invalid(Momentum, "rsi_oversold", "need 0 <= oversold (%g) <= overbought (%g) <= 100",
			c.RSIOversold, c.RSIOverbought)
	}
	if c.MACDFast <= 0 || c.MACDSignal <= 0 || c.MACDFast >= c.MACDSlow {
		return &ConfigError{Archetype: Momentum, Field: "macd_fast", Err: fmt.Errorf(
			"fast %d slow %d signal %d: %w", c.MACDFast, c.MACDSlow, c.MACDSignal, indicators.ErrInvalidPeriods)}
	}
	if c.EMAShort <= 0 || c.EMALong <= 0 {
		return invalid(Momentum, "ema_short_period", "periods must be positive, got %d/%d", c.EMAShort, c.EMALong)
	}
	if c.Lookback < 0 {
		return invalid(Momentum, "lookback", "must not be negative, got %d", c.Lookback)
	}
	return nil
}

// MomentumSnapshot holds the indicator values read at the latest bar.
type MomentumSnapshot struct {
	RSI      float64 `json:"rsi"`
	MACD     float64 `json:"macd"`
	Signal   float64 `json:"macd_signal"`
	EMAShort float64 `json:"ema_short"`
	EMALong  float64 `json:"ema_long"`
}

// MomentumPolicy buys an oversold dip that is already turning up and exits
// on overbought or a bearish EMA cross. It holds at most one position.
type MomentumPolicy struct {
	cfg  MomentumConfig
	last *MomentumSnapshot
}

// NewMomentum validates cfg and returns a flat policy.
func NewMomentum(cfg MomentumConfig) (*MomentumPolicy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &MomentumPolicy{cfg: cfg}, nil
}

func newMomentumFromConfig(cfg Config) (Policy, error) {
	s := cfg.Settings
	if missing := s.Missing("order_quantity", "rsi_period", "macd_fast", "macd_slow", "macd_signal"); len(missing) > 0 {
		return nil, &ConfigError{Archetype: Momentum, Missing: missing, Err: ErrMissingSetting}
	}

	c := DefaultMomentumConfig()
	var errs []error
	geti := func(key string, dst *int) {
		v, err := s.Int(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	getf := func(key string, dst *float64) {
		v, err := s.Float(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	getf("order_quantity", &c.OrderQuantity)
	geti("rsi_period", &c.RSIPeriod)
	getf("rsi_oversold", &c.RSIOversold)
	getf("rsi_overbought", &c.RSIOverbought)
	geti("macd_fast", &c.MACDFast)
	geti("macd_slow", &c.MACDSlow)
	geti("macd_signal", &c.MACDSignal)
	geti("ema_short_period", &c.EMAShort)
	geti("ema_long_period", &c.EMALong)
	geti("lookback", &c.Lookback)
	if err := errors.Join(errs...); err != nil {
		return nil, &ConfigError{Archetype: Momentum, Err: err}
	}
	return NewMomentum(c)
}

func (m *MomentumPolicy) Name() string { return string(Momentum) }

// Config returns the validated configuration.
func (m *MomentumPolicy) Config() MomentumConfig { return m.cfg }

func (m *MomentumPolicy) Decide(window []market.Bar, ledger LedgerView) (*Decision, error) {
	if m.cfg.Lookback > 0 && len(window) > m.cfg.Lookback {
		window = window[len(window)-m.cfg.Lookback:]
	}

	snap, ok, err := m.snapshot(market.Closes(window))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	m.last = &snap

	if ledger.OpenOrders > 0 {
		return nil, nil
	}
	return m.signal(snap, ledger), nil
}

func (m *MomentumPolicy) snapshot(closes []float64) (MomentumSnapshot, bool, error) {
	macd, err := indicators.MACD(closes, m.cfg.MACDFast, m.cfg.MACDSlow, m.cfg.MACDSignal)
	if err != nil {
		return MomentumSnapshot{}, false, err
	}

	var s MomentumSnapshot
	values := []struct {
		series []float64
		dst    *float64
	}{
		{indicators.RSI(closes, m.cfg.RSIPeriod), &s.RSI},
		{macd.Line, &s.MACD},
		{macd.Signal, &s.Signal},
		{indicators.EMA(closes, m.cfg.EMAShort), &s.EMAShort},
		{indicators.EMA(closes, m.cfg.EMALong), &s.EMALong},
	}
	for _, v := range values {
		x, ok := indicators.Last(v.series)
		if !ok {
			return MomentumSnapshot{}, false, nil
		}
		*v.dst = x
	}
	return s, true, nil
}

// signal applies the entry and exit rules to one snapshot.
func (m *MomentumPolicy) signal(s MomentumSnapshot, ledger LedgerView) *Decision {
	flat := ledger.Position <= sim.Epsilon

	if flat && s.RSI < m.cfg.RSIOversold && s.MACD > s.Signal && s.EMAShort > s.EMALong {
		return &Decision{
			Side:     market.Buy,
			Type:     market.Market,
			Quantity: m.cfg.OrderQuantity,
			Reason:   fmt.Sprintf("rsi %.2f below %.2f, macd over signal, ema up", s.RSI, m.cfg.RSIOversold),
		}
	}

	if !flat && (s.RSI > m.cfg.RSIOverbought || s.EMAShort < s.EMALong) {
		reason := fmt.Sprintf("rsi %.2f above %.2f", s.RSI, m.cfg.RSIOverbought)
		if s.EMAShort < s.EMALong {
			reason = fmt.Sprintf("ema %d crossed below ema %d", m.cfg.EMAShort, m.cfg.EMALong)
		}
		return &Decision{
			Side:     market.Sell,
			Type:     market.Market,
			Quantity: ledger.Position,
			Reason:   reason,
		}
	}
	return nil
}

func (m *MomentumPolicy) State() map[string]any {
	if m.last == nil {
		return map[string]any{"warm": false}
	}
	return map[string]any{
		"warm":      true,
		"rsi":       m.last.RSI,
		"macd":      m.last.MACD,
		"signal":    m.last.Signal,
		"ema_short": m.last.EMAShort,
		"ema_long":  m.last.EMALong,
	}
}
