package sim

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultCommission is charged on the notional of every fill.
	DefaultCommission = 0.001

	// Epsilon is the position size treated as flat.
	Epsilon = 1e-9
)

var (
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidFill          = errors.New("invalid fill")
)

// Fill is the ledger's account of one executed order.
type Fill struct {
	Price      float64
	Quantity   float64
	Notional   float64
	Commission float64

	// AvgEntryPrice is the cost basis after a buy, or the basis the sale
	// was measured against.
	AvgEntryPrice float64
	RealizedPnL   *float64

	CashAfter     float64
	PositionAfter float64
}

// Ledger tracks quote cash, base position and the average entry price of a
// single long-only position. It is not safe for concurrent use.
type Ledger struct {
	cash       float64
	position   float64
	avgEntry   float64
	commission float64
}

// NewLedger starts flat with cash and a commission rate such as 0.001.
func NewLedger(cash, commission float64) *Ledger {
	return &Ledger{cash: cash, commission: commission}
}

func (l *Ledger) Cash() float64           { return l.cash }
func (l *Ledger) Position() float64       { return l.position }
func (l *Ledger) AvgEntryPrice() float64  { return l.avgEntry }
func (l *Ledger) CommissionRate() float64 { return l.commission }

// Equity marks the position at price.
func (l *Ledger) Equity(price float64) float64 {
	return l.cash + l.position*price
}

// Flat reports whether no position is held.
func (l *Ledger) Flat() bool { return l.position <= Epsilon }

// BuyQuote spends quote currency worth of base at price, commission on top.
func (l *Ledger) BuyQuote(quote, price float64) (Fill, error) {
	if quote <= 0 || price <= 0 {
		return Fill{}, fmt.Errorf("buy %g quote at %g: %w", quote, price, ErrInvalidFill)
	}
	return l.Buy(quote/price, price)
}

// Buy adds qty at price. The whole fill is rejected if cash cannot cover
// notional plus commission.
func (l *Ledger) Buy(qty, price float64) (Fill, error) {
	if !(qty > 0) || !(price > 0) || math.IsInf(qty, 0) || math.IsInf(price, 0) {
		return Fill{}, fmt.Errorf("buy %g at %g: %w", qty, price, ErrInvalidFill)
	}

	notional := qty * price
	fee := notional * l.commission
	cost := notional + fee
	if cost-l.cash > Epsilon {
		return Fill{}, fmt.Errorf("buy %g at %g costs %.8f, cash %.8f: %w",
			qty, price, cost, l.cash, ErrInsufficientCash)
	}

	l.avgEntry = (l.position*l.avgEntry + notional) / (l.position + qty)
	l.position += qty
	l.cash -= cost
	if l.cash < 0 {
		l.cash = 0
	}

	return Fill{
		Price:         price,
		Quantity:      qty,
		Notional:      notional,
		Commission:    fee,
		AvgEntryPrice: l.avgEntry,
		CashAfter:     l.cash,
		PositionAfter: l.position,
	}, nil
}

// Sell removes qty at price and realizes (price - avg entry) * qty. Selling
// more than the position by over Epsilon is rejected.
func (l *Ledger) Sell(qty, price float64) (Fill, error) {
	if !(qty > 0) || !(price > 0) || math.IsInf(qty, 0) || math.IsInf(price, 0) {
		return Fill{}, fmt.Errorf("sell %g at %g: %w", qty, price, ErrInvalidFill)
	}
	if qty-l.position > Epsilon {
		return Fill{}, fmt.Errorf("sell %g, holding %g: %w", qty, l.position, ErrInsufficientPosition)
	}
	if qty > l.position {
		qty = l.position
	}

	notional := qty * price
	fee := notional * l.commission
	return l.reduce(qty, price, notional, fee), nil
}

// Liquidate closes the whole position at price without commission. It
// returns false when already flat.
func (l *Ledger) Liquidate(price float64) (Fill, bool) {
	if l.Flat() || !(price > 0) {
		return Fill{}, false
	}
	qty := l.position
	return l.reduce(qty, price, qty*price, 0), true
}

func (l *Ledger) reduce(qty, price, notional, fee float64) Fill {
	basis := l.avgEntry
	pnl := (price - basis) * qty

	l.cash += notional - fee
	l.position -= qty
	if l.position < Epsilon {
		l.position = 0
		l.avgEntry = 0
	}

	return Fill{
		Price:         price,
		Quantity:      qty,
		Notional:      notional,
		Commission:    fee,
		AvgEntryPrice: basis,
		RealizedPnL:   &pnl,
		CashAfter:     l.cash,
		PositionAfter: l.position,
	}
}
