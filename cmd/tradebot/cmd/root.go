package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/internal/logging"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "Backtest and paper-trade Momentum, Grid and DCA strategies",
	Long: `Tradebot replays historical klines through trading strategies and reports
trade logs, equity curves and performance metrics.

It provides tools for:
  - Backtesting momentum (RSI + MACD), grid and DCA strategies
  - Running batches of backtests in parallel
  - Storing and browsing results in SQLite
  - Importing klines into PostgreSQL/TimescaleDB
  - Paper trading a strategy against a polled feed`,
	SilenceUsage: true,
}

var logLevel string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
}

func newLogger(cfgLevel string) (*zap.Logger, error) {
	level := cfgLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(level)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openProvider returns the configured bar provider and a func releasing it.
func openProvider(ctx context.Context, cfg *config.Config) (feed.Provider, func(), error) {
	switch cfg.Data.Source {
	case "csv":
		return feed.NewCSV(cfg.Data.Path), func() {}, nil
	case "postgres":
		pg, err := feed.OpenPostgres(ctx, cfg.Data.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return pg, pg.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
}

// openSink returns the configured result sink, or nil when journaling is
// off.
func openSink(cfg *config.Config) (journal.Sink, func() error, error) {
	nop := func() error { return nil }
	switch cfg.Journal.Type {
	case "", "none":
		return nil, nop, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return j, j.Close, nil
	case "csv":
		j, err := journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, j.Close, nil
	case "org":
		return journal.OrgDir{Dir: cfg.Journal.OrgDir}, nop, nil
	}
	return nil, nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
}

func dataset(cfg *config.Config) string {
	if cfg.Data.Source == "csv" {
		return cfg.Data.Path
	}
	return cfg.Data.Source
}
