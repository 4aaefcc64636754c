package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// Order is a simulated order waiting in the book.
type Order struct {
	ID   string
	Side market.Side
	Type market.OrderType

	// Quantity is in base units. A MARKET buy may leave it zero and set
	// QuoteAmount instead.
	Quantity    float64
	QuoteAmount float64
	LimitPrice  float64

	CreatedAt    time.Time
	CreatedIndex int

	Reason string
	// Ref is an opaque tag owned by the strategy that produced the order.
	Ref string
}

// Validate checks that the order can ever be filled.
func (o Order) Validate() error {
	if o.Side != market.Buy && o.Side != market.Sell {
		return fmt.Errorf("order %s: side %q", o.ID, o.Side)
	}
	switch o.Type {
	case market.Market:
		if o.Quantity > 0 {
			return nil
		}
		if o.Side == market.Buy && o.QuoteAmount > 0 {
			return nil
		}
		return fmt.Errorf("order %s: market %s needs a quantity", o.ID, o.Side)
	case market.Limit:
		if o.LimitPrice <= 0 {
			return fmt.Errorf("order %s: limit price %g", o.ID, o.LimitPrice)
		}
		if o.Quantity <= 0 {
			return fmt.Errorf("order %s: limit %s needs a quantity", o.ID, o.Side)
		}
		return nil
	}
	return fmt.Errorf("order %s: type %q", o.ID, o.Type)
}

// Apply executes a matched order against the ledger at price.
func (l *Ledger) Apply(o Order, price float64) (Fill, error) {
	if o.Side == market.Sell {
		return l.Sell(o.Quantity, price)
	}
	if o.Quantity <= 0 && o.QuoteAmount > 0 {
		return l.BuyQuote(o.QuoteAmount, price)
	}
	return l.Buy(o.Quantity, price)
}
