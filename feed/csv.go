package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// CSV reads bars from a file of rows:
//
//	time,open,high,low,close[,volume,...]
//
// time is RFC3339 or a Unix timestamp in seconds, milliseconds or
// microseconds, so Binance kline exports load unchanged. A header row
// ("time,..." or "open_time,...") is allowed and extra columns are ignored.
type CSV struct {
	Path string
}

// NewCSV returns a provider reading path on every request.
func NewCSV(path string) *CSV {
	return &CSV{Path: path}
}

func (c *CSV) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	out := filter(Normalize(bars), req)
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// ReadCSV parses every bar row in r in file order.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []market.Bar
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && isHeader(row[0]) {
			continue
		}

		b, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
}

func isHeader(first string) bool {
	s := strings.ToLower(strings.TrimSpace(first))
	return s == "time" || s == "open_time" || s == "timestamp"
}

func parseBarRow(row []string) (market.Bar, error) {
	if len(row) < 5 {
		return market.Bar{}, fmt.Errorf("want at least 5 columns, got %d", len(row))
	}
	ts, err := ParseTime(row[0])
	if err != nil {
		return market.Bar{}, err
	}

	vals := make([]float64, 5)
	n := 4
	if len(row) > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		vals[i] = v
	}
	return market.Bar{
		Time:   ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// ParseTime accepts RFC3339 (with or without fractional seconds) or a Unix
// timestamp whose unit is inferred from its digit count.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch digits := len(strings.TrimPrefix(s, "-")); {
		case digits >= 16:
			return time.UnixMicro(n).UTC(), nil
		case digits >= 12:
			return time.UnixMilli(n).UTC(), nil
		default:
			return time.Unix(n, 0).UTC(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCSV writes bars with a header in the format ReadCSV accepts.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
