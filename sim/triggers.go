package sim

import "github.com/rustyeddy/tradebot/market"

// Match reports whether bar fills the order and at what price. MARKET
// orders fill at the open. Limits fill at their own price once the bar
// trades through it.
func Match(o Order, bar market.Bar) (float64, bool) {
	switch o.Type {
	case market.Market:
		return bar.Open, bar.Open > 0
	case market.Limit:
		if o.Side == market.Buy && hitBuyLimit(o, bar) {
			return o.LimitPrice, true
		}
		if o.Side == market.Sell && hitSellLimit(o, bar) {
			return o.LimitPrice, true
		}
	}
	return 0, false
}

func hitBuyLimit(o Order, bar market.Bar) bool {
	return bar.Low <= o.LimitPrice
}

func hitSellLimit(o Order, bar market.Bar) bool {
	return bar.High >= o.LimitPrice
}
