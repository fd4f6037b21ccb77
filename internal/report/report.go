// Package report renders comparison, Monte Carlo and horizon results for the
// terminal and as markdown.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/investrun/internal/compare"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/persistence"
)

const labelWidth = 40

// Printer writes human readable reports. Colors are applied only when
// enabled, normally when stdout is a terminal.
type Printer struct {
	w      io.Writer
	header *color.Color
	good   *color.Color
	bad    *color.Color
	dim    *color.Color
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, colored bool) *Printer {
	p := &Printer{
		w:      w,
		header: color.New(color.Bold, color.FgCyan),
		good:   color.New(color.FgGreen),
		bad:    color.New(color.FgRed),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.header, p.good, p.bad, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Money formats an amount rounded to cents.
func Money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Shares formats a share count to four decimals.
func Shares(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}

// Ratio formats a yearly/sub-annual ratio.
func Ratio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}

// FrequencyName names a purchase frequency.
func FrequencyName(timesPerYear int) string {
	switch timesPerYear {
	case montecarlo.RandomFrequency:
		return "random"
	case 1:
		return "yearly"
	case 2:
		return "semiannual"
	case 3:
		return "every four months"
	case 4:
		return "quarterly"
	case 6:
		return "bimonthly"
	case 12:
		return "monthly"
	default:
		return fmt.Sprintf("%d/yr", timesPerYear)
	}
}

// dotted pads label with dots up to the value column.
func dotted(label string) string {
	if len(label) >= labelWidth-1 {
		return label + " "
	}
	return label + " " + strings.Repeat(".", labelWidth-len(label)-2) + " "
}

func (p *Printer) ratio(v float64) string {
	s := Ratio(v)
	switch {
	case v > 1:
		return p.good.Sprint(s)
	case v < 1:
		return p.bad.Sprint(s)
	default:
		return s
	}
}

// Comparison prints a single yearly versus sub-annual comparison.
func (p *Printer) Comparison(row *compare.Row) {
	p.header.Fprintf(p.w, "%s %d-%d: yearly vs %s\n", row.Symbol, row.StartYear, row.EndYear, FrequencyName(row.TimesPerYear))
	if row.Yearly != nil {
		fmt.Fprintf(p.w, "%s%s\n", dotted("Total invested"), Money(row.Yearly.Invested))
	}
	fmt.Fprintf(p.w, "%s%s\n", dotted("Total shares held by yearly investor"), Shares(row.TotalSharesYearly))
	fmt.Fprintf(p.w, "%s%s\n", dotted("Total shares held by "+FrequencyName(row.TimesPerYear)+" investor"), Shares(row.TotalSharesSub))
	fmt.Fprintf(p.w, "%s%s\n\n", dotted("Portfolio values ratio (yearly/sub-annual)"), p.ratio(row.Ratio))
}

// MonteCarlo prints a simulation summary.
func (p *Printer) MonteCarlo(res *montecarlo.Result) {
	s := res.Summary
	p.header.Fprintf(p.w, "%s Monte Carlo: yearly vs %s (%d iterations)\n",
		res.Symbol, FrequencyName(res.Config.TimesPerYear), s.Count)
	p.dim.Fprintf(p.w, "run %s\n", res.ID)

	fmt.Fprintf(p.w, "%s%s\n", dotted("Mean ratio"), p.ratio(s.MeanRatio))
	fmt.Fprintf(p.w, "%s%s\n", dotted("Median ratio"), p.ratio(s.Median))
	fmt.Fprintf(p.w, "%s%s\n", dotted("Std dev"), Ratio(s.StdDev))
	fmt.Fprintf(p.w, "%s%s / %s\n", dotted("Min / max"), Ratio(s.Min), Ratio(s.Max))

	win := decimal.NewFromFloat(s.LumpSumWinShare*100).StringFixed(1) + "%"
	if s.LumpSumWinShare > 0.5 {
		win = p.good.Sprint(win)
	}
	fmt.Fprintf(p.w, "%s%s\n", dotted("Yearly investor ahead"), win)

	if res.Trend != nil {
		fmt.Fprintf(p.w, "%sratio = %s * years + %s (R² %s)\n", dotted("Trend"),
			decimal.NewFromFloat(res.Trend.Slope).StringFixed(5),
			Ratio(res.Trend.Intercept),
			decimal.NewFromFloat(res.Trend.R2).StringFixed(3))
	}
	fmt.Fprintln(p.w)
}

// Horizon prints the multi-index table: start year per symbol then the ratio.
func (p *Printer) Horizon(rows []compare.Row) {
	for _, r := range rows {
		fmt.Fprintf(p.w, "%s%d\n", dotted(r.Symbol+" investor started investing in"), r.StartYear)
	}
	p.dim.Fprintln(p.w, "Investor ratios = total portfolio value of yearly / monthly")
	for _, r := range rows {
		fmt.Fprintf(p.w, "%s%s\n", dotted(r.Symbol+" investor ratio"), p.ratio(r.Ratio))
	}
	fmt.Fprintln(p.w)
}

// HorizonMarkdown writes rows as a markdown table.
func HorizonMarkdown(w io.Writer, rows []compare.Row) {
	fmt.Fprintln(w, "| Symbol | Start | End | Shares (yearly) | Shares (sub-annual) | Ratio |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %d | %d | %s | %s | %s |\n",
			r.Symbol, r.StartYear, r.EndYear, Shares(r.TotalSharesYearly), Shares(r.TotalSharesSub), Ratio(r.Ratio))
	}
}

// MonteCarloMarkdown writes simulation summaries as a markdown table.
func MonteCarloMarkdown(w io.Writer, results []*montecarlo.Result) {
	fmt.Fprintln(w, "| Symbol | Frequency | Iterations | Mean | Median | Yearly ahead | Trend slope |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, res := range results {
		slope := "n/a"
		if res.Trend != nil {
			slope = decimal.NewFromFloat(res.Trend.Slope).StringFixed(5)
		}
		fmt.Fprintf(w, "| %s | %s | %d | %s | %s | %s%% | %s |\n",
			res.Symbol, FrequencyName(res.Config.TimesPerYear), res.Summary.Count,
			Ratio(res.Summary.MeanRatio), Ratio(res.Summary.Median),
			decimal.NewFromFloat(res.Summary.LumpSumWinShare*100).StringFixed(1), slope)
	}
}

// Runs prints persisted runs, one per line.
func (p *Printer) Runs(runs []persistence.Run) {
	if len(runs) == 0 {
		p.dim.Fprintln(p.w, "no runs stored")
		return
	}
	p.header.Fprintf(p.w, "%-36s  %-10s  %-8s  %-6s  %-6s  %-8s  %s\n",
		"ID", "KIND", "SYMBOL", "FREQ", "ITERS", "MEAN", "STARTED")
	for _, r := range runs {
		fmt.Fprintf(p.w, "%-36s  %-10s  %-8s  %-6d  %-6d  %-8s  %s\n",
			r.ID, r.Kind, r.Symbol, r.TimesPerYear, r.Iterations,
			Ratio(r.MeanRatio), r.StartedAt.UTC().Format("2006-01-02 15:04"))
	}
}

// RunDetail prints a stored run header followed by its samples.
func (p *Printer) RunDetail(run *persistence.Run, samples []persistence.Sample) {
	p.header.Fprintf(p.w, "%s %s: yearly vs %s\n", run.Symbol, run.Kind, FrequencyName(run.TimesPerYear))
	p.dim.Fprintf(p.w, "run %s\n", run.ID)
	fmt.Fprintf(p.w, "%s%s\n", dotted("Yearly investment"), "$"+run.YearlyInvestment.StringFixed(2))
	fmt.Fprintf(p.w, "%s%d\n", dotted("Iterations"), run.Iterations)
	fmt.Fprintf(p.w, "%s%d\n", dotted("Seed"), run.Seed)
	fmt.Fprintf(p.w, "%s%s\n", dotted("Mean ratio"), p.ratio(run.MeanRatio))
	fmt.Fprintf(p.w, "%s%s\n", dotted("Started"), run.StartedAt.UTC().Format("2006-01-02 15:04:05"))
	if len(samples) == 0 {
		p.dim.Fprintln(p.w, "no samples stored")
		return
	}

	p.header.Fprintf(p.w, "%-6s  %-8s  %-5s  %-5s  %-6s  %s\n", "ITER", "SYMBOL", "START", "END", "FREQ", "RATIO")
	for _, s := range samples {
		fmt.Fprintf(p.w, "%-6d  %-8s  %-5d  %-5d  %-6d  %s\n",
			s.Iteration, s.Symbol, s.StartYear, s.EndYear, s.TimesPerYear, p.ratio(s.Ratio))
	}
}
