package market

import (
	"fmt"
	"strings"
)

// Side is the direction of an order or trade record.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
	// Close only appears on the synthetic end-of-run record.
	Close Side = "CLOSE"
)

// ParseSide accepts any letter case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	case Close:
		return Close, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

func (s Side) String() string { return string(s) }

// OrderType selects the fill rule for a simulated order.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// ParseOrderType accepts any letter case.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(s))) {
	case Market:
		return Market, nil
	case Limit:
		return Limit, nil
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

func (t OrderType) String() string { return string(t) }
