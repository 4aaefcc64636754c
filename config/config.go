// Package config loads the run configuration for the tradebot CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/internal/logging"
	"github.com/rustyeddy/tradebot/metrics"
	"github.com/rustyeddy/tradebot/sim"
	"github.com/rustyeddy/tradebot/strategies"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied by Load.
const (
	EnvDB       = "TRADEBOT_DB"
	EnvPGDSN    = "TRADEBOT_PG_DSN"
	EnvLogLevel = "TRADEBOT_LOG_LEVEL"
)

// Config represents a complete backtest configuration
type Config struct {
	Account    AccountConfig     `json:"account" yaml:"account"`
	Strategy   strategies.Config `json:"strategy" yaml:"strategy"`
	Data       DataConfig        `json:"data" yaml:"data"`
	Simulation SimulationConfig  `json:"simulation" yaml:"simulation"`
	// Metrics overrides the Sharpe annualization derived from the interval.
	Metrics  *metrics.Options `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Journal  JournalConfig    `json:"journal" yaml:"journal"`
	LogLevel string           `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	Currency       string  `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// DataConfig selects the historical bar provider.
type DataConfig struct {
	Source string    `json:"source" yaml:"source"` // "csv" or "postgres"
	Path   string    `json:"path,omitempty" yaml:"path,omitempty"`
	DSN    string    `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Start  time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End    time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// SimulationConfig contains engine parameters
type SimulationConfig struct {
	FillTiming string `json:"fill_timing" yaml:"fill_timing"`
	CloseAtEnd bool   `json:"close_at_end" yaml:"close_at_end"`
	Seed       int64  `json:"seed" yaml:"seed"`
}

// JournalConfig contains result persistence parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "sqlite", "csv" or "org"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// Load reads path, applies environment overrides and validates the
// result. Fields absent from the file keep their Default values, except
// the strategy, which must be given in full. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	cfg.Strategy = strategies.Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		cfg.Strategy = strategies.Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the journal database, PostgreSQL DSN and log level
// from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Journal.DBPath = v
		if c.Journal.Type == "" || c.Journal.Type == "none" {
			c.Journal.Type = "sqlite"
		}
	}
	if v := os.Getenv(EnvPGDSN); v != "" {
		c.Data.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// SaveToFile saves configuration as YAML or JSON based on the extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !(c.Account.InitialCapital > 0) {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Account.CommissionRate < 0 || c.Account.CommissionRate >= 1 {
		return fmt.Errorf("account.commission_rate must be in [0, 1)")
	}

	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if _, err := strategies.ParseArchetype(string(c.Strategy.Type)); err != nil {
		return fmt.Errorf("strategy.type: %w", err)
	}
	if _, err := strategies.New(c.Strategy); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.Path == "" {
			return fmt.Errorf("data.path required for csv source")
		}
	case "postgres":
		if c.Data.DSN == "" {
			return fmt.Errorf("data.dsn required for postgres source (or set %s)", EnvPGDSN)
		}
	default:
		return fmt.Errorf("data.source must be 'csv' or 'postgres'")
	}
	if !c.Data.Start.IsZero() && !c.Data.End.IsZero() && c.Data.End.Before(c.Data.Start) {
		return fmt.Errorf("data.end is before data.start")
	}

	if _, err := backtest.ParseFillTiming(c.Simulation.FillTiming); err != nil {
		return fmt.Errorf("simulation.fill_timing: %w", err)
	}
	if c.Metrics != nil && c.Metrics.PeriodsPerYear <= 0 {
		return fmt.Errorf("metrics.periods_per_year must be positive")
	}

	switch c.Journal.Type {
	case "", "none":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "org":
		if c.Journal.OrgDir == "" {
			return fmt.Errorf("journal org_dir required for org type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'sqlite', 'csv' or 'org'")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// EngineOptions translates the account and simulation sections into
// backtest engine options.
func (c *Config) EngineOptions() []backtest.Option {
	opts := []backtest.Option{
		backtest.WithInitialCapital(c.Account.InitialCapital),
		backtest.WithCommission(c.Account.CommissionRate),
		backtest.WithFillTiming(backtest.FillTiming(c.Simulation.FillTiming)),
		backtest.WithCloseAtEnd(c.Simulation.CloseAtEnd),
		backtest.WithSeed(c.Simulation.Seed),
	}
	if c.Metrics != nil {
		opts = append(opts, backtest.WithMetrics(*c.Metrics))
	}
	return opts
}

// Request is the bar range the configured run replays.
func (c *Config) Request() feed.Request {
	return feed.Request{
		Symbol:   c.Strategy.Symbol,
		Interval: c.Strategy.Interval,
		Start:    c.Data.Start,
		End:      c.Data.End,
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: backtest.DefaultInitialCapital,
			CommissionRate: sim.DefaultCommission,
			Currency:       "USDT",
		},
		Strategy: strategies.Config{
			Type:     strategies.DCA,
			Symbol:   "BTCUSDT",
			Interval: "1h",
			Settings: strategies.Settings{
				"purchase_amount":          100.0,
				"purchase_frequency_hours": 24.0,
			},
		},
		Data: DataConfig{
			Source: "csv",
			Path:   "./data/BTCUSDT-1h.csv",
		},
		Simulation: SimulationConfig{
			FillTiming: string(backtest.SameBar),
			CloseAtEnd: true,
			Seed:       1,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./tradebot.db",
		},
		LogLevel: "info",
	}
}
