package feed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/tradebot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(h int, c float64) market.Bar {
	return market.Bar{Time: t0.Add(time.Duration(h) * time.Hour), Open: c, High: c, Low: c, Close: c}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := []market.Bar{bar(2, 1), bar(0, 2), bar(2, 3), bar(1, 4)}
	out := Normalize(in)

	require.Len(t, out, 3)
	assert.Equal(t, []float64{2, 4, 3}, market.Closes(out))
	assert.Equal(t, 1.0, in[0].Close, "input untouched")
	assert.NoError(t, market.ValidateSeries(out))
	assert.Nil(t, Normalize(nil))
}

func TestStaticFiltersRange(t *testing.T) {
	t.Parallel()

	s := NewStatic([]market.Bar{bar(0, 1), bar(1, 2), bar(2, 3), bar(3, 4)})
	ctx := context.Background()

	got, err := s.Bars(ctx, Request{Start: t0.Add(time.Hour), End: t0.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, market.Closes(got))

	got, err = s.Bars(ctx, Request{})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = s.Bars(ctx, Request{Start: t0.Add(10 * time.Hour)})
	assert.ErrorIs(t, err, ErrNoData)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Bars(cctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-03-01T12:00:00Z",
		"2024-03-01T14:00:00+02:00",
		"2024-03-01 12:00:00",
		"1709294400",
		"1709294400000",
		"1709294400000000",
	} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s -> %s", in, got)
	}

	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	const data = `open_time,open,high,low,close,volume,close_time
1709251200000,100,101,99,100.5,12,1709254799999
1709254800000,100.5,102,100,101.5,8,1709258399999

1709258400000,101.5,103,101,102,4,1709261999999
`
	bars, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0, bars[0].Time)
	assert.Equal(t, market.Bar{Time: t0.Add(time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 8}, bars[1])

	_, err = ReadCSV(strings.NewReader("2024-03-01T00:00:00Z,1,2,x,1\n"))
	assert.ErrorContains(t, err, "line 1")

	bars, err = ReadCSV(strings.NewReader("2024-03-01T00:00:00Z,1,2,0.5,1\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, bars[0].Volume, "volume column optional")
}

func TestCSVProviderRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bars.csv")
	src := []market.Bar{bar(1, 2), bar(0, 1), bar(2, 3)}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, src))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := NewCSV(path).Bars(context.Background(), Request{Symbol: "BTCUSDT", Interval: "1h"})
	require.NoError(t, err)
	assert.Equal(t, Normalize(src), got)

	_, err = NewCSV(path).Bars(context.Background(), Request{End: t0})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = NewCSV(filepath.Join(t.TempDir(), "missing.csv")).Bars(context.Background(), Request{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
