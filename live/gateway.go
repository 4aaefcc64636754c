package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/sim"
	"github.com/rustyeddy/tradebot/strategies"
)

// ErrRejected wraps an order the venue refused.
var ErrRejected = errors.New("order rejected")

// Execution is one fill reported by a gateway.
type Execution struct {
	OrderID  string
	Decision strategies.Decision
	Time     time.Time
	Fill     sim.Fill
}

// Gateway routes a bot's decisions to an execution venue.
type Gateway interface {
	// Place submits d after bar closed. Fills that happen at once are
	// returned; resting orders are reported later by Sync.
	Place(ctx context.Context, d strategies.Decision, bar market.Bar) ([]Execution, error)
	// Sync matches resting orders against a newly closed bar.
	Sync(ctx context.Context, bar market.Bar) ([]Execution, error)
	Account(ctx context.Context) (strategies.LedgerView, error)
}

// PaperGateway is an in-memory venue for dry runs. MARKET orders fill at
// the close of the bar that produced them and LIMIT orders rest until a
// later bar crosses their price.
type PaperGateway struct {
	mu      sync.Mutex
	ledger  *sim.Ledger
	book    sim.Book
	pending map[string]strategies.Decision
}

var _ Gateway = (*PaperGateway)(nil)

func NewPaperGateway(cash, commission float64) *PaperGateway {
	return &PaperGateway{
		ledger:  sim.NewLedger(cash, commission),
		pending: make(map[string]strategies.Decision),
	}
}

func (g *PaperGateway) Place(_ context.Context, d strategies.Decision, bar market.Bar) ([]Execution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	o := sim.Order{
		ID:          id.New(),
		Side:        d.Side,
		Type:        d.Type,
		Quantity:    d.Quantity,
		QuoteAmount: d.QuoteAmount,
		LimitPrice:  d.LimitPrice,
		CreatedAt:   bar.Time,
		Reason:      d.Reason,
		Ref:         d.Ref,
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	if o.Type == market.Limit {
		g.book.Add(o)
		g.pending[o.ID] = d
		return nil, nil
	}

	f, err := g.ledger.Apply(o, bar.Close)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return []Execution{{OrderID: o.ID, Decision: d, Time: bar.Time, Fill: f}}, nil
}

// Sync fills resting orders the bar crossed. An order the account cannot
// afford stays open.
func (g *PaperGateway) Sync(_ context.Context, bar market.Bar) ([]Execution, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Execution
	for _, o := range g.book.Orders() {
		price, ok := sim.Match(o, bar)
		if !ok {
			continue
		}
		f, err := g.ledger.Apply(o, price)
		if errors.Is(err, sim.ErrInsufficientCash) || errors.Is(err, sim.ErrInsufficientPosition) {
			continue
		}
		if err != nil {
			return out, err
		}
		g.book.Remove(o.ID)
		out = append(out, Execution{OrderID: o.ID, Decision: g.pending[o.ID], Time: bar.Time, Fill: f})
		delete(g.pending, o.ID)
	}
	return out, nil
}

func (g *PaperGateway) Account(context.Context) (strategies.LedgerView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return strategies.LedgerView{
		Cash:          g.ledger.Cash(),
		Position:      g.ledger.Position(),
		AvgEntryPrice: g.ledger.AvgEntryPrice(),
		OpenOrders:    g.book.Len(),
	}, nil
}

// OpenOrders returns the resting orders.
func (g *PaperGateway) OpenOrders() []sim.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.book.Orders()
}
