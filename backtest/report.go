package backtest

import (
	"fmt"
	"io"
	"math"
	"time"
)

// PrintResult writes a human-readable summary of r.
func PrintResult(w io.Writer, r *Result) {
	m := r.Metrics.Rounded()

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	if r.Interval != "" {
		fmt.Fprintf(w, "Interval:      %s\n", r.Interval)
	}
	fmt.Fprintf(w, "Fill Timing:   %s\n", r.FillTiming)
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	if r.NoData {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No data: nothing was simulated.")
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", m.Start.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", m.End.UTC().Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", m.TotalTrades)
	fmt.Fprintf(w, "Closed:        %d\n", m.ClosedTrades)
	fmt.Fprintf(w, "Wins:          %d\n", m.WinningTrades)
	fmt.Fprintf(w, "Losses:        %d\n", m.LosingTrades)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate)
	fmt.Fprintf(w, "Profit Factor: %s\n", FormatProfitFactor(m.ProfitFactor))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Equity:  %.2f\n", m.InitialCapital)
	fmt.Fprintf(w, "End Equity:    %.2f\n", m.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", m.TotalPnL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.TotalPnLPct)
	fmt.Fprintf(w, "Max Drawdown:  %.2f (%.2f%%)\n", m.MaxDrawdown, m.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Commission:    %.2f\n", m.CommissionPaid)

	if len(r.OpenOrders) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Expired Orders: %d\n", len(r.OpenOrders))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Simulated in %s\n", r.Duration.Round(time.Microsecond))
	fmt.Fprintln(w)
}

// FormatProfitFactor renders the unbounded profit factor as "inf".
func FormatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
