package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rustyeddy/tradebot/market"
)

// KlinesSchema creates the bar table. On TimescaleDB it can be turned into a
// hypertable on open_time without changes to the queries below.
const KlinesSchema = `
CREATE TABLE IF NOT EXISTS klines (
  symbol    TEXT NOT NULL,
  interval  TEXT NOT NULL,
  open_time TIMESTAMPTZ NOT NULL,
  open      DOUBLE PRECISION NOT NULL,
  high      DOUBLE PRECISION NOT NULL,
  low       DOUBLE PRECISION NOT NULL,
  close     DOUBLE PRECISION NOT NULL,
  volume    DOUBLE PRECISION NOT NULL DEFAULT 0,
  PRIMARY KEY (symbol, interval, open_time)
);
`

var klineColumns = []string{"symbol", "interval", "open_time", "open", "high", "low", "close", "volume"}

// Postgres reads bars from a klines table over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool. Close then closes the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema creates the klines table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, KlinesSchema)
	return err
}

func (p *Postgres) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	const q = `
SELECT open_time, open, high, low, close, volume
FROM klines
WHERE symbol = $1 AND interval = $2
  AND ($3::timestamptz IS NULL OR open_time >= $3)
  AND ($4::timestamptz IS NULL OR open_time < $4)
ORDER BY open_time`

	rows, err := p.pool.Query(ctx, q, req.Symbol, req.Interval, optTime(req.Start), optTime(req.End))
	if err != nil {
		return nil, err
	}
	bars, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (market.Bar, error) {
		var b market.Bar
		err := row.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
		b.Time = b.Time.UTC()
		return b, err
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// Import bulk-loads bars for symbol and interval. Rows already present are
// overwritten. It returns the number of bars written.
func (p *Postgres) Import(ctx context.Context, symbol, interval string, bars []market.Bar) (int64, error) {
	bars = Normalize(bars)
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE klines_import (LIKE klines INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return 0, err
	}

	src := pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
		b := bars[i]
		return []any{symbol, interval, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"klines_import"}, klineColumns, src); err != nil {
		return 0, fmt.Errorf("copy klines: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO klines SELECT * FROM klines_import
ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
  open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
  close = EXCLUDED.close, volume = EXCLUDED.volume`)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
