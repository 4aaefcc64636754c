package journal

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"money": func(x float64) string { return dec(roundTo(x, 4)) },
	"pct":   pct,
	"pf": func(x float64) string {
		if math.IsInf(x, 1) {
			return "inf"
		}
		return dec(roundTo(x, 2))
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"stamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 Mon 15:04") },
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

// FormatRunOrg renders r as an Org-mode entry with its summary in a
// PROPERTIES drawer and its trade log as a table.
func FormatRunOrg(r Run) (string, error) {
	var buf bytes.Buffer
	if err := orgTemplate.Execute(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OrgDir writes each saved run to <Dir>/<run id>.org.
type OrgDir struct {
	Dir string
}

var _ Sink = OrgDir{}

func (o OrgDir) SaveRun(_ context.Context, r Run) error {
	s, err := FormatRunOrg(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(o.Dir, r.RunID+".org"), []byte(s), 0o644)
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:INTERVAL:    {{.Interval}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:FILL_TIMING: {{.FillTiming}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:BARS:        {{.Bars}}
:START_BAL:   {{money .InitialCapital}}
:END_EQUITY:  {{money .Metrics.FinalEquity}}
:NET_PL:      {{money .Metrics.TotalPnL}}
:RETURN_PCT:  {{pct .Metrics.TotalPnLPct}}
:MAX_DD:      {{money .Metrics.MaxDrawdown}}
:MAX_DD_PCT:  {{pct .Metrics.MaxDrawdownPct}}
:SHARPE:      {{printf "%.3f" .Metrics.SharpeRatio}}
:TRADES:      {{.Metrics.TotalTrades}}
:WINS:        {{.Metrics.WinningTrades}}
:LOSSES:      {{.Metrics.LosingTrades}}
:WIN_RATE:    {{pct .Metrics.WinRate}}
:PROFIT_FAC:  {{pf .Metrics.ProfitFactor}}
:COMMISSION:  {{money .Metrics.CommissionPaid}}
:CREATED:     [{{stamp .Created}}]
:END:

** Strategy Configuration
#+begin_src json
{{printf "%s" .Config}}
#+end_src

** Trades
| Time | Side | Type | Price | Qty | Commission | PnL | Reason |
|------+------+------+-------+-----+------------+-----+--------|
{{- range .Trades }}
| {{date .Time}} | {{.Side}} | {{.Type}} | {{money .Price}} | {{money .Quantity}} | {{money .Commission}} | {{if .RealizedPnL}}{{money .PnL}}{{end}} | {{.Reason}} |
{{- end }}
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
