package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/live"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper trade a strategy against a polled feed",
	Long: `Paper runs the configured strategy as a live bot. Klines are polled from
the configured data source and orders are filled by an in-memory gateway.
Klines already stored at startup only seed the strategy's history; later
klines drive orders. Runs until interrupted.

Example:
  tradebot paper -f momentum.yaml --poll 1m`,
	RunE: runPaper,
}

var (
	paperConfigPath string
	paperPoll       time.Duration
	paperReport     time.Duration
)

func init() {
	rootCmd.AddCommand(paperCmd)

	paperCmd.Flags().StringVarP(&paperConfigPath, "config", "f", "", "config file (YAML or JSON) (required)")
	paperCmd.Flags().DurationVar(&paperPoll, "poll", time.Minute, "feed polling interval")
	paperCmd.Flags().DurationVar(&paperReport, "report", 5*time.Minute, "status report interval")
	paperCmd.MarkFlagRequired("config")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(paperConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	src, release, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	reg := live.NewRegistry(log)
	botID, err := reg.Start(live.BotConfig{
		Strategy:  cfg.Strategy,
		Source:    src,
		Gateway:   live.NewPaperGateway(cfg.Account.InitialCapital, cfg.Account.CommissionRate),
		PollEvery: paperPoll,
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(paperReport)
	defer ticker.Stop()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			final, err := reg.Stop(botID)
			if err != nil {
				return err
			}
			printStatus(cmd, final)
			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return reg.Shutdown(shutdown)
		case <-ticker.C:
			st, err := reg.Status(botID)
			if err != nil {
				return err
			}
			log.Info("paper status", zap.String("state", string(st.State)), zap.Int("trades", st.Trades))
			printStatus(cmd, st)
			if st.State == live.Failed {
				fmt.Fprintln(out, "bot failed; stopping")
				stop()
			}
		}
	}
}

func printStatus(cmd *cobra.Command, st live.Status) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"[%s] %s %s %s: seeded=%d bars=%d trades=%d cash=%.2f position=%.8f last=%s %s\n",
		st.State, st.ID, st.Strategy, st.Symbol, st.Seeded, st.Bars, st.Trades, st.Cash, st.Position,
		st.LastBar.Format(time.RFC3339), st.LastError)
}
