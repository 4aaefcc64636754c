package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/tradebot/market"
)

// SQLite stores runs in a single SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// SaveRun writes the run, its trades and its equity curve in one
// transaction. An unbounded profit factor is stored as NULL.
func (j *SQLite) SaveRun(ctx context.Context, r Run) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := r.Metrics
	var pf any = m.ProfitFactor
	if math.IsInf(m.ProfitFactor, 1) {
		pf = nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(run_id, created, strategy, symbol, bar_interval, dataset, config, fill_timing,
		 start_time, end_time, bars, initial_capital, commission_rate, final_cash, final_position,
		 final_equity, total_trades, closed_trades, winning_trades, losing_trades,
		 total_pnl, total_pnl_pct, win_rate, gross_profit, gross_loss, profit_factor,
		 max_drawdown, max_drawdown_pct, sharpe_ratio, commission_paid, total_bought, total_sold,
		 duration_ns, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Symbol, r.Interval, r.Dataset, string(r.Config), r.FillTiming,
		r.Start, r.End, r.Bars, r.InitialCapital, r.CommissionRate, r.FinalCash, r.FinalPosition,
		m.FinalEquity, m.TotalTrades, m.ClosedTrades, m.WinningTrades, m.LosingTrades,
		m.TotalPnL, m.TotalPnLPct, m.WinRate, m.GrossProfit, m.GrossLoss, pf,
		m.MaxDrawdown, m.MaxDrawdownPct, m.SharpeRatio, m.CommissionPaid, m.TotalBought, m.TotalSold,
		int64(r.Duration), strings.Join(r.Notes, "\n"),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	ts, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, seq, trade_id, order_id, time, side, order_type, price, quantity, notional,
		 commission, avg_entry_price, cash_after, position_after, realized_pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ts.Close()
	for i, t := range r.Trades {
		_, err := ts.ExecContext(ctx,
			r.RunID, i, t.ID, t.OrderID, t.Time, string(t.Side), string(t.Type), t.Price, t.Quantity,
			t.Notional, t.Commission, t.AvgEntryPrice, t.CashAfter, t.PositionAfter, t.RealizedPnL, t.Reason)
		if err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	es, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, seq, time, equity, cash, position)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer es.Close()
	for i, p := range r.Equity {
		if _, err := es.ExecContext(ctx, r.RunID, i, p.Time, p.Equity, p.Cash, p.Position); err != nil {
			return fmt.Errorf("insert equity %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, created, strategy, symbol, bar_interval, dataset, config, fill_timing,
	start_time, end_time, bars, initial_capital, commission_rate, final_cash, final_position,
	final_equity, total_trades, closed_trades, winning_trades, losing_trades,
	total_pnl, total_pnl_pct, win_rate, gross_profit, gross_loss, profit_factor,
	max_drawdown, max_drawdown_pct, sharpe_ratio, commission_paid, total_bought, total_sold,
	duration_ns, notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		m        = &r.Metrics
		config   string
		pf       sql.NullFloat64
		duration int64
		notes    string
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Symbol, &r.Interval, &r.Dataset, &config, &r.FillTiming,
		&r.Start, &r.End, &r.Bars, &r.InitialCapital, &r.CommissionRate, &r.FinalCash, &r.FinalPosition,
		&m.FinalEquity, &m.TotalTrades, &m.ClosedTrades, &m.WinningTrades, &m.LosingTrades,
		&m.TotalPnL, &m.TotalPnLPct, &m.WinRate, &m.GrossProfit, &m.GrossLoss, &pf,
		&m.MaxDrawdown, &m.MaxDrawdownPct, &m.SharpeRatio, &m.CommissionPaid, &m.TotalBought, &m.TotalSold,
		&duration, &notes,
	)
	if err != nil {
		return Run{}, err
	}

	r.Config = []byte(config)
	r.Duration = time.Duration(duration)
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}
	m.InitialCapital = r.InitialCapital
	m.Start, m.End = r.Start, r.End
	if pf.Valid {
		m.ProfitFactor = pf.Float64
	} else {
		m.ProfitFactor = math.Inf(1)
	}
	return r, nil
}

func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%q: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}

	if r.Trades, err = j.ListTrades(ctx, runID); err != nil {
		return Run{}, err
	}
	if r.Equity, err = j.ListEquity(ctx, runID); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM backtest_runs ORDER BY created DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]market.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, order_id, time, side, order_type, price, quantity, notional,
		       commission, avg_entry_price, cash_after, position_after, realized_pnl, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.TradeRecord
	for rows.Next() {
		var (
			t         market.TradeRecord
			side, typ string
			pnl       sql.NullFloat64
		)
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.Time, &side, &typ, &t.Price, &t.Quantity, &t.Notional,
			&t.Commission, &t.AvgEntryPrice, &t.CashAfter, &t.PositionAfter, &pnl, &t.Reason,
		); err != nil {
			return nil, err
		}
		t.Side = market.Side(side)
		t.Type = market.OrderType(typ)
		if pnl.Valid {
			v := pnl.Float64
			t.RealizedPnL = &v
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) ListEquity(ctx context.Context, runID string) ([]market.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, equity, cash, position
		FROM equity
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.EquityPoint
	for rows.Next() {
		var p market.EquityPoint
		if err := rows.Scan(&p.Time, &p.Equity, &p.Cash, &p.Position); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
