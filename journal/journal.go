// Package journal persists and exports finished backtest runs.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/metrics"
	"github.com/rustyeddy/tradebot/strategies"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run is one persisted backtest: its inputs, summary and full logs.
type Run struct {
	RunID    string
	Created  time.Time
	Strategy string
	Symbol   string
	Interval string
	Dataset  string
	// Config is the strategy configuration as JSON.
	Config     []byte
	FillTiming string

	Start time.Time
	End   time.Time
	Bars  int

	InitialCapital float64
	CommissionRate float64
	FinalCash      float64
	FinalPosition  float64
	Metrics        metrics.Metrics
	Duration       time.Duration

	Trades []market.TradeRecord
	Equity []market.EquityPoint

	Notes []string
}

// NewRun wraps a result for storage under a fresh run ID.
func NewRun(res *backtest.Result, cfg strategies.Config, dataset string) (Run, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, err
	}
	return Run{
		RunID:          id.New(),
		Created:        time.Now().UTC().Round(0),
		Strategy:       res.Strategy,
		Symbol:         res.Symbol,
		Interval:       res.Interval,
		Dataset:        dataset,
		Config:         raw,
		FillTiming:     string(res.FillTiming),
		Start:          res.Metrics.Start,
		End:            res.Metrics.End,
		Bars:           res.Bars,
		InitialCapital: res.InitialCapital,
		CommissionRate: res.Commission,
		FinalCash:      res.FinalCash,
		FinalPosition:  res.FinalPosition,
		Metrics:        res.Metrics,
		Duration:       res.Duration,
		Trades:         res.Trades,
		Equity:         res.Equity,
	}, nil
}

// Sink accepts finished runs.
type Sink interface {
	SaveRun(ctx context.Context, r Run) error
}

// Store is a queryable run archive.
type Store interface {
	Sink
	// GetRun loads a run with its trades and equity curve.
	GetRun(ctx context.Context, runID string) (Run, error)
	// ListRuns returns run summaries, newest first, without logs.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListTrades(ctx context.Context, runID string) ([]market.TradeRecord, error)
	ListEquity(ctx context.Context, runID string) ([]market.EquityPoint, error)
	Close() error
}
