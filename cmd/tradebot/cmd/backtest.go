package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run backtests from config files",
	Long: `Backtest replays the configured klines through the configured strategy and
prints the results. Several config files run as a batch in parallel; each
result is saved to the journal named by its own config.

Supported strategies:
  - momentum: RSI + MACD entries, MACD cross or overbought exits
  - grid:     buy-low/sell-high ladder between two bounds
  - dca:      fixed quote purchases on a schedule

Example:
  tradebot backtest -f grid.yaml
  tradebot backtest -f grid.yaml -f dca.yaml --parallel 2 --json`,
	RunE: runBacktest,
}

var (
	btConfigPaths []string
	btParallel    int
	btFillTiming  string
	btDataPath    string
	btJSON        bool
	btNoJournal   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringSliceVarP(&btConfigPaths, "config", "f", nil, "config file (YAML or JSON); repeat for a batch (required)")
	backtestCmd.Flags().IntVarP(&btParallel, "parallel", "p", 0, "max concurrent runs (0 = number of CPUs)")
	backtestCmd.Flags().StringVar(&btFillTiming, "fill-timing", "", "override fill timing (same-bar, next-bar)")
	backtestCmd.Flags().StringVar(&btDataPath, "data", "", "override the CSV data path")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print results as JSON")
	backtestCmd.Flags().BoolVar(&btNoJournal, "no-journal", false, "do not save results")

	backtestCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfgs := make([]*config.Config, 0, len(btConfigPaths))
	for _, path := range btConfigPaths {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if btFillTiming != "" {
			cfg.Simulation.FillTiming = btFillTiming
		}
		if btDataPath != "" {
			cfg.Data.Source, cfg.Data.Path = "csv", btDataPath
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cfgs = append(cfgs, cfg)
	}

	log, err := newLogger(cfgs[0].LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	jobs := make([]backtest.Job, len(cfgs))
	for i, cfg := range cfgs {
		p, release, err := openProvider(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()

		jobs[i] = backtest.Job{
			Name:     jobName(btConfigPaths[i]),
			Config:   cfg.Strategy,
			Provider: p,
			Request:  cfg.Request(),
			Options:  cfg.EngineOptions(),
		}
	}

	results, err := backtest.NewPool(btParallel, log).RunAll(ctx, jobs)
	if err != nil {
		return err
	}

	var failed []string
	out := cmd.OutOrStdout()
	for i, jr := range results {
		if jr.Err != nil && jr.Result == nil {
			fmt.Fprintf(out, "%s: %v\n", jr.Name, jr.Err)
			failed = append(failed, jr.Name)
			continue
		}

		if btJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(jr.Result); err != nil {
				return err
			}
		} else {
			if len(results) > 1 {
				fmt.Fprintf(out, "== %s ==\n", jr.Name)
			}
			backtest.PrintResult(out, jr.Result)
		}

		if jr.Err != nil {
			fmt.Fprintf(out, "%s: %v\n", jr.Name, jr.Err)
			failed = append(failed, jr.Name)
			continue
		}
		if !btNoJournal && !jr.Result.NoData {
			if err := save(ctx, out, log, cfgs[i], jr.Result); err != nil {
				return err
			}
		}
	}

	if len(failed) > 0 {
		return errors.New("failed runs: " + strings.Join(failed, ", "))
	}
	return nil
}

func save(ctx context.Context, out io.Writer, log *zap.Logger, cfg *config.Config, res *backtest.Result) error {
	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return err
	}
	if sink == nil {
		return nil
	}
	defer closeSink()

	run, err := journal.NewRun(res, cfg.Strategy, dataset(cfg))
	if err != nil {
		return err
	}
	if err := sink.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	log.Info("run saved", zap.String("run_id", run.RunID), zap.String("journal", cfg.Journal.Type))
	if !btJSON {
		fmt.Fprintf(out, "Run ID:        %s\n", run.RunID)
	}
	return nil
}

func jobName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// exists reports whether path can be stat'ed.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
