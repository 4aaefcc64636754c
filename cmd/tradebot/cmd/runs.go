package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rustyeddy/tradebot/backtest"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse saved backtest runs",
	Long: `Query backtest runs saved in the SQLite journal.

Subcommands:
  list - List recent runs
  show - Show one run as an Org-mode report or JSON

Examples:
  tradebot runs list -n 20
  tradebot runs show 01HZX3...`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its trade log",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var (
	runsDBPath string
	runsLimit  int
	runsJSON   bool
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.PersistentFlags().StringVarP(&runsDBPath, "db", "d", "./tradebot.db", "path to SQLite journal DB")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs (0 = all)")
	runsShowCmd.Flags().BoolVar(&runsJSON, "json", false, "print the run as JSON")
}

func openStore() (*journal.SQLite, error) {
	if !exists(runsDBPath) {
		return nil, fmt.Errorf("no journal at %s", runsDBPath)
	}
	j, err := journal.NewSQLite(runsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	j, err := openStore()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tSTRATEGY\tSYMBOL\tBARS\tTRADES\tPNL %\tMAX DD %\tSHARPE\tPF")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2f\t%.2f\t%.3f\t%s\n",
			r.RunID, r.Created.Format("2006-01-02 15:04"), r.Strategy, r.Symbol, r.Bars,
			r.Metrics.TotalTrades, r.Metrics.TotalPnLPct, r.Metrics.MaxDrawdownPct,
			r.Metrics.SharpeRatio, backtest.FormatProfitFactor(r.Metrics.ProfitFactor))
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	j, err := openStore()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	if runsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	s, err := journal.FormatRunOrg(run)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), s)
	return nil
}
