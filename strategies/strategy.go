// Package strategies holds the trading policies shared by backtests and live
// bots. A policy sees a window of bars and a read-only ledger view and
// returns at most one decision per bar.
package strategies

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// Archetype names a policy family.
type Archetype string

const (
	Momentum Archetype = "momentum"
	Grid     Archetype = "grid"
	DCA      Archetype = "dca"
)

// ErrUnknownArchetype is returned by New for unregistered archetypes.
var ErrUnknownArchetype = errors.New("unknown strategy archetype")

// ParseArchetype accepts the canonical names and the legacy bot names
// (MomentumBot, GridBot, DCABot) in any case.
func ParseArchetype(s string) (Archetype, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "bot")
	name = strings.TrimSuffix(name, "_")
	a := Archetype(name)
	mu.RLock()
	_, ok := registry[a]
	mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownArchetype)
	}
	return a, nil
}

// Config selects and parameterizes a policy.
type Config struct {
	Type     Archetype `json:"type" yaml:"type"`
	Symbol   string    `json:"symbol" yaml:"symbol"`
	Interval string    `json:"interval,omitempty" yaml:"interval,omitempty"`
	Settings Settings  `json:"settings" yaml:"settings"`
}

// LedgerView is the account state a policy may read.
type LedgerView struct {
	Cash          float64
	Position      float64
	AvgEntryPrice float64
	// OpenOrders counts orders still waiting in the book.
	OpenOrders int
}

// Decision is a request to place one order.
type Decision struct {
	Side market.Side
	Type market.OrderType

	// Quantity is in base units. A MARKET buy may use QuoteAmount instead.
	Quantity    float64
	QuoteAmount float64
	LimitPrice  float64

	Reason string
	// Ref is echoed back in FillEvent and OnCancel.
	Ref string
}

// FillEvent tells a policy that one of its decisions executed.
type FillEvent struct {
	Decision   Decision
	Time       time.Time
	Price      float64
	Quantity   float64
	Notional   float64
	Commission float64
}

// Policy decides what to do at the close of each bar. The window ends with
// the current bar and must not be modified.
type Policy interface {
	Name() string
	Decide(window []market.Bar, ledger LedgerView) (*Decision, error)
}

// Initializer is implemented by policies that need the first bar before
// trading, such as a grid sizing itself against the start price. Returned
// decisions are placed before the first fill pass.
type Initializer interface {
	Init(first market.Bar, ledger LedgerView) ([]Decision, error)
}

// FillObserver is implemented by policies that track their own fills. It
// may return follow-up orders.
type FillObserver interface {
	OnFill(ev FillEvent) []Decision
}

// CancelObserver is told when a decision was dropped without filling.
type CancelObserver interface {
	OnCancel(d Decision)
}

// Stater exposes a policy's scratch state for reporting.
type Stater interface {
	State() map[string]any
}

// Factory builds a policy from its configuration.
type Factory func(cfg Config) (Policy, error)

var (
	mu       sync.RWMutex
	registry = map[Archetype]Factory{
		Momentum: newMomentumFromConfig,
		Grid:     newGridFromConfig,
		DCA:      newDCAFromConfig,
	}
)

// Register adds or replaces the factory for an archetype.
func Register(a Archetype, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[Archetype(strings.ToLower(string(a)))] = f
}

// Archetypes lists the registered archetypes in name order.
func Archetypes() []Archetype {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Archetype, 0, len(registry))
	for a := range registry {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New validates cfg and builds a fresh policy with empty scratch state.
func New(cfg Config) (Policy, error) {
	a, err := ParseArchetype(string(cfg.Type))
	if err != nil {
		return nil, &ConfigError{Archetype: cfg.Type, Err: err}
	}
	cfg.Type = a

	mu.RLock()
	f := registry[a]
	mu.RUnlock()
	return f(cfg)
}
