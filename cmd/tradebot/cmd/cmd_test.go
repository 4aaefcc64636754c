package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeBars(t *testing.T, path string, n int) {
	t.Helper()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		p := 100 + float64(i%5)
		bars[i] = market.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, feed.WriteCSV(f, bars))
}

func TestBacktestAndRuns(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "btc.csv")
	dbPath := filepath.Join(dir, "runs.db")
	cfgPath := filepath.Join(dir, "dca.yaml")

	writeBars(t, dataPath, 72)

	cfg := config.Default()
	cfg.Data.Path = dataPath
	cfg.Journal.DBPath = dbPath
	cfg.LogLevel = "error"
	require.NoError(t, cfg.SaveToFile(cfgPath))

	out, err := execute(t, "config", "validate", "-f", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")

	out, err = execute(t, "backtest", "-f", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Strategy:      dca")
	assert.Contains(t, out, "Bars:          72")
	assert.Contains(t, out, "Run ID:")

	out, err = execute(t, "runs", "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN ID")
	assert.Contains(t, out, "BTCUSDT")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	_, err = config.Load(path)
	require.NoError(t, err)

	_, err = execute(t, "config", "init", "-o", path)
	assert.Error(t, err)
}

func TestRunsMissingDB(t *testing.T) {
	_, err := execute(t, "runs", "list", "--db", filepath.Join(t.TempDir(), "none.db"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tradebot version")
	assert.Contains(t, out, "dca")
}
