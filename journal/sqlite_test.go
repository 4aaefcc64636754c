package journal

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('backtest_runs','trades','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["backtest_runs"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestSQLiteSaveAndGetRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	in := sampleRun("R1", t0.Add(24*time.Hour))
	require.NoError(t, j.SaveRun(ctx, in))

	got, err := j.GetRun(ctx, "R1")
	require.NoError(t, err)

	assert.Equal(t, "R1", got.RunID)
	assert.True(t, in.Created.Equal(got.Created))
	assert.Equal(t, "grid", got.Strategy)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "1h", got.Interval)
	assert.Equal(t, "testdata/btc.csv", got.Dataset)
	assert.JSONEq(t, `{"archetype":"grid"}`, string(got.Config))
	assert.Equal(t, "same-bar", got.FillTiming)
	assert.True(t, in.Start.Equal(got.Start))
	assert.True(t, in.End.Equal(got.End))
	assert.Equal(t, 4, got.Bars)
	assert.Equal(t, 10023.525, got.FinalCash)
	assert.Equal(t, in.Duration, got.Duration)
	assert.Equal(t, []string{"first", "second"}, got.Notes)

	assert.Equal(t, 2, got.Metrics.TotalTrades)
	assert.Equal(t, 1, got.Metrics.WinningTrades)
	assert.Equal(t, 23.525, got.Metrics.TotalPnL)
	assert.Equal(t, 1.234, got.Metrics.SharpeRatio)
	assert.Equal(t, 10000.0, got.Metrics.InitialCapital)
	assert.Equal(t, 0.0, got.Metrics.ProfitFactor)

	require.Len(t, got.Trades, 2)
	assert.Equal(t, "T1", got.Trades[0].ID)
	assert.Nil(t, got.Trades[0].RealizedPnL)
	assert.Equal(t, "T2", got.Trades[1].ID)
	require.NotNil(t, got.Trades[1].RealizedPnL)
	assert.Equal(t, 25.0, *got.Trades[1].RealizedPnL)
	assert.Equal(t, "grid level 1", got.Trades[1].Reason)
	assert.True(t, in.Trades[1].Time.Equal(got.Trades[1].Time))

	require.Len(t, got.Equity, 2)
	assert.Equal(t, 9999.525, got.Equity[0].Equity)
	assert.Equal(t, 5.0, got.Equity[0].Position)
	assert.True(t, in.Equity[1].Time.Equal(got.Equity[1].Time))
}

func TestSQLiteInfiniteProfitFactor(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	in := sampleRun("R1", t0)
	in.Metrics.ProfitFactor = math.Inf(1)
	require.NoError(t, j.SaveRun(ctx, in))

	got, err := j.GetRun(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, math.IsInf(got.Metrics.ProfitFactor, 1))
}

func TestSQLiteDuplicateRunFails(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	require.NoError(t, j.SaveRun(ctx, sampleRun("R1", t0)))
	assert.Error(t, j.SaveRun(ctx, sampleRun("R1", t0)))

	trades, err := j.ListTrades(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	require.NoError(t, j.SaveRun(ctx, sampleRun("A", t0.Add(1*time.Hour))))
	require.NoError(t, j.SaveRun(ctx, sampleRun("B", t0.Add(3*time.Hour))))
	require.NoError(t, j.SaveRun(ctx, sampleRun("C", t0.Add(2*time.Hour))))

	runs, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "B", runs[0].RunID)
	assert.Equal(t, "C", runs[1].RunID)
	assert.Equal(t, "A", runs[2].RunID)
	assert.Empty(t, runs[0].Trades)

	runs, err = j.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteRunNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	_, err := j.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
