package strategies

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// DCAConfig parameterizes the dollar-cost-averaging policy.
type DCAConfig struct {
	// PurchaseAmount is spent in quote currency on each purchase.
	PurchaseAmount float64
	Interval       time.Duration
}

// DCAPolicy buys a fixed quote amount on a fixed schedule. The first bar
// always buys; after a data gap it resumes at the next boundary instead of
// buying every missed interval.
type DCAPolicy struct {
	cfg DCAConfig

	started bool
	next    time.Time

	purchases int
	skipped   int
	invested  float64
	acquired  float64
}

// NewDCA validates cfg.
func NewDCA(cfg DCAConfig) (*DCAPolicy, error) {
	if cfg.PurchaseAmount <= 0 {
		return nil, invalid(DCA, "purchase_amount", "must be positive, got %g", cfg.PurchaseAmount)
	}
	if cfg.Interval <= 0 {
		return nil, invalid(DCA, "purchase_frequency_hours", "must be positive, got %s", cfg.Interval)
	}
	return &DCAPolicy{cfg: cfg}, nil
}

func newDCAFromConfig(cfg Config) (Policy, error) {
	s := cfg.Settings
	if missing := s.Missing("purchase_amount", "purchase_frequency_hours|buy_interval_seconds"); len(missing) > 0 {
		return nil, &ConfigError{Archetype: DCA, Missing: missing, Err: ErrMissingSetting}
	}

	amount, err := s.Float("purchase_amount", 0)
	var interval time.Duration
	var ierr error
	if s.Has("purchase_frequency_hours") {
		var h float64
		h, ierr = s.Float("purchase_frequency_hours", 0)
		interval = time.Duration(h * float64(time.Hour))
	} else {
		var sec float64
		sec, ierr = s.Float("buy_interval_seconds", 0)
		interval = time.Duration(sec * float64(time.Second))
	}
	if err := errors.Join(err, ierr); err != nil {
		return nil, &ConfigError{Archetype: DCA, Err: err}
	}
	return NewDCA(DCAConfig{PurchaseAmount: amount, Interval: interval})
}

func (d *DCAPolicy) Name() string { return string(DCA) }

func (d *DCAPolicy) Decide(window []market.Bar, ledger LedgerView) (*Decision, error) {
	if len(window) == 0 {
		return nil, nil
	}
	now := window[len(window)-1].Time
	if !d.started {
		d.started = true
		d.next = now
	}
	if now.Before(d.next) {
		return nil, nil
	}

	scheduled := d.next
	d.advance(now)

	if ledger.Cash < d.cfg.PurchaseAmount {
		d.skipped++
		return nil, nil
	}
	return &Decision{
		Side:        market.Buy,
		Type:        market.Market,
		QuoteAmount: d.cfg.PurchaseAmount,
		Reason:      fmt.Sprintf("dca purchase due %s", scheduled.UTC().Format(time.RFC3339)),
	}, nil
}

// advance moves the schedule one interval past the scheduled time, then
// skips whole intervals until it is strictly after now.
func (d *DCAPolicy) advance(now time.Time) {
	d.next = d.next.Add(d.cfg.Interval)
	if d.next.After(now) {
		return
	}
	missed := now.Sub(d.next)/d.cfg.Interval + 1
	d.next = d.next.Add(missed * d.cfg.Interval)
}

// NextPurchase is the next scheduled purchase time, zero before the first bar.
func (d *DCAPolicy) NextPurchase() time.Time { return d.next }

func (d *DCAPolicy) OnFill(ev FillEvent) []Decision {
	if ev.Decision.Side == market.Buy {
		d.purchases++
		d.invested += ev.Notional
		d.acquired += ev.Quantity
	}
	return nil
}

func (d *DCAPolicy) State() map[string]any {
	return map[string]any{
		"purchases":           d.purchases,
		"skipped":             d.skipped,
		"total_invested":      d.invested,
		"total_base_acquired": d.acquired,
		"next_purchase":       d.next,
	}
}
