package market

import "time"

// TradeRecord is one executed fill, or the synthetic CLOSE at end of run.
type TradeRecord struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id,omitempty"`
	Time          time.Time `json:"time"`
	Side          Side      `json:"side"`
	Type          OrderType `json:"type"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	Notional      float64   `json:"notional"`
	Commission    float64   `json:"commission"`
	AvgEntryPrice float64   `json:"avg_entry_price"`
	CashAfter     float64   `json:"cash_after"`
	PositionAfter float64   `json:"position_after"`
	Reason        string    `json:"reason,omitempty"`

	// RealizedPnL is nil for BUY records.
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
}

// HasPnL reports whether the record closed (part of) a position.
func (r TradeRecord) HasPnL() bool { return r.RealizedPnL != nil }

// PnL returns the realized PnL or 0 for records that carry none.
func (r TradeRecord) PnL() float64 {
	if r.RealizedPnL == nil {
		return 0
	}
	return *r.RealizedPnL
}

// EquityPoint is the marked-to-market account value at the end of a bar.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Cash     float64   `json:"cash"`
	Position float64   `json:"position"`
}
