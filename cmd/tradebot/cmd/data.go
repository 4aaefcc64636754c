package cmd

import (
	"fmt"
	"os"

	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/feed"
	"github.com/spf13/cobra"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage historical klines",
	Long: `Load kline CSV files (RFC3339 or unix-millisecond open times, as in
Binance exports) into PostgreSQL/TimescaleDB for the postgres data source.

Example:
  tradebot data import --symbol BTCUSDT --interval 1h BTCUSDT-1h-2024.csv`,
}

var dataImportCmd = &cobra.Command{
	Use:   "import <file.csv>...",
	Short: "Import kline CSV files into PostgreSQL",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDataImport,
}

var (
	dataDSN      string
	dataSymbol   string
	dataInterval string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataImportCmd.Flags().StringVar(&dataDSN, "dsn", "", "PostgreSQL DSN (default $"+config.EnvPGDSN+")")
	dataImportCmd.Flags().StringVarP(&dataSymbol, "symbol", "s", "", "symbol, e.g. BTCUSDT (required)")
	dataImportCmd.Flags().StringVarP(&dataInterval, "interval", "i", "1h", "kline interval")
	dataImportCmd.MarkFlagRequired("symbol")
}

func runDataImport(cmd *cobra.Command, args []string) error {
	dsn := dataDSN
	if dsn == "" {
		dsn = os.Getenv(config.EnvPGDSN)
	}
	if dsn == "" {
		return fmt.Errorf("no DSN: pass --dsn or set %s", config.EnvPGDSN)
	}

	ctx, stop := signalContext()
	defer stop()

	pg, err := feed.OpenPostgres(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		bars, err := feed.ReadCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		n, err := pg.Import(ctx, dataSymbol, dataInterval, feed.Normalize(bars))
		if err != nil {
			return fmt.Errorf("%s: import: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d klines imported (%s %s)\n", path, n, dataSymbol, dataInterval)
	}
	return nil
}
