package journal

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/shopspring/decimal"
)

// CSV appends run logs to a trades file and an equity file. Each row
// carries its run ID so several runs can share the files.
type CSV struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

var _ Sink = (*CSV)(nil)

func NewCSV(tradesPath, equityPath string) (*CSV, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write([]string{"run_id", "trade_id", "order_id", "time", "side", "type", "price", "quantity",
		"notional", "commission", "avg_entry_price", "cash_after", "position_after", "realized_pnl", "reason"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"run_id", "time", "equity", "cash", "position"}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSV{tw, ew, tf, ef}, nil
}

// RecordTrade appends one trade row.
func (j *CSV) RecordTrade(runID string, t market.TradeRecord) error {
	pnl := ""
	if t.RealizedPnL != nil {
		pnl = dec(*t.RealizedPnL)
	}
	return j.trades.Write([]string{
		runID,
		t.ID,
		t.OrderID,
		t.Time.UTC().Format(time.RFC3339),
		string(t.Side),
		string(t.Type),
		dec(t.Price),
		dec(t.Quantity),
		dec(t.Notional),
		dec(t.Commission),
		dec(t.AvgEntryPrice),
		dec(t.CashAfter),
		dec(t.PositionAfter),
		pnl,
		t.Reason,
	})
}

// RecordEquity appends one equity row.
func (j *CSV) RecordEquity(runID string, p market.EquityPoint) error {
	return j.equity.Write([]string{
		runID,
		p.Time.UTC().Format(time.RFC3339),
		dec(p.Equity),
		dec(p.Cash),
		dec(p.Position),
	})
}

// SaveRun appends every trade and equity point of r and flushes both files.
func (j *CSV) SaveRun(ctx context.Context, r Run) error {
	for _, t := range r.Trades {
		if err := j.RecordTrade(r.RunID, t); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range r.Equity {
		if err := j.RecordEquity(r.RunID, p); err != nil {
			return err
		}
	}
	return j.flush()
}

func (j *CSV) flush() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	if err := j.flush(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

// dec formats x with the fewest digits that round-trip.
func dec(x float64) string {
	return decimal.NewFromFloat(x).String()
}

func pct(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64) + "%"
}
