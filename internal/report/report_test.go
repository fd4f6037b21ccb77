package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/investrun/internal/compare"
	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/persistence"
	"github.com/sawpanic/investrun/internal/stats"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$12000.00", Money(12000))
	assert.Equal(t, "$0.13", Money(0.125))
	assert.Equal(t, "3.1416", Shares(3.14159))
	assert.Equal(t, "1.0500", Ratio(1.05))
}

func TestFrequencyName(t *testing.T) {
	assert.Equal(t, "quarterly", FrequencyName(4))
	assert.Equal(t, "monthly", FrequencyName(12))
	assert.Equal(t, "random", FrequencyName(montecarlo.RandomFrequency))
	assert.Equal(t, "5/yr", FrequencyName(5))
}

func TestDotted(t *testing.T) {
	line := dotted("Mean ratio")
	assert.Len(t, line, labelWidth)
	assert.True(t, strings.HasPrefix(line, "Mean ratio ."))
	assert.Equal(t, strings.Repeat("x", 45)+" ", dotted(strings.Repeat("x", 45)))
}

func TestComparisonPlain(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Comparison(&compare.Row{
		Symbol: "^GSPC", StartYear: 1990, EndYear: 2024, TimesPerYear: 12,
		TotalSharesYearly: 210.5, TotalSharesSub: 200, Ratio: 1.0525,
		Yearly: &invest.Purchases{Invested: 420000},
	})

	out := buf.String()
	assert.Contains(t, out, "^GSPC 1990-2024: yearly vs monthly")
	assert.Contains(t, out, "$420000.00")
	assert.Contains(t, out, "210.5000")
	assert.Contains(t, out, "1.0525")
	assert.NotContains(t, out, "\x1b[")
}

func TestComparisonColored(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Comparison(&compare.Row{Symbol: "TQQQ", TimesPerYear: 4, Ratio: 0.9})
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestMonteCarlo(t *testing.T) {
	var buf bytes.Buffer
	res := &montecarlo.Result{
		ID:     uuid.New(),
		Symbol: "BTC-USD",
		Config: montecarlo.Config{TimesPerYear: 4},
		Trend:  &stats.Trend{Slope: 0.01234, Intercept: 0.98, R2: 0.4},
		Summary: stats.Summary{
			Count: 100, MeanRatio: 1.1, Median: 1.05, StdDev: 0.2, Min: 0.7, Max: 1.9, LumpSumWinShare: 0.62,
		},
	}
	NewPrinter(&buf, false).MonteCarlo(res)

	out := buf.String()
	assert.Contains(t, out, "BTC-USD Monte Carlo: yearly vs quarterly (100 iterations)")
	assert.Contains(t, out, "62.0%")
	assert.Contains(t, out, "ratio = 0.01234 * years + 0.9800")

	buf.Reset()
	MonteCarloMarkdown(&buf, []*montecarlo.Result{res, {Symbol: "^GSPC", Config: montecarlo.Config{TimesPerYear: 12}}})
	assert.Contains(t, buf.String(), "| BTC-USD | quarterly | 100 |")
	assert.Contains(t, buf.String(), "| n/a |")
}

func TestHorizon(t *testing.T) {
	rows := []compare.Row{
		{Symbol: "^GSPC", StartYear: 2014, EndYear: 2024, Ratio: 1.02, TotalSharesYearly: 1, TotalSharesSub: 0.98},
		{Symbol: "HIBL", StartYear: 2020, EndYear: 2024, Ratio: 0.95},
	}

	var buf bytes.Buffer
	NewPrinter(&buf, false).Horizon(rows)
	out := buf.String()
	assert.Contains(t, out, "HIBL investor started investing in .... 2020")
	assert.Contains(t, out, "^GSPC investor ratio")

	buf.Reset()
	HorizonMarkdown(&buf, rows)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "| ^GSPC | 2014 | 2024 | 1.0000 | 0.9800 | 1.0200 |", lines[2])
}

func TestRuns(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Runs(nil)
	assert.Contains(t, buf.String(), "no runs stored")

	buf.Reset()
	id := uuid.MustParse("6f1c4bb8-5a7e-4d1c-9a55-0d6f2d1f4a10")
	p.Runs([]persistence.Run{{
		ID: id, Kind: "montecarlo", Symbol: "^GSPC", TimesPerYear: 4, Iterations: 1000,
		MeanRatio: 1.031, StartedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}})
	out := buf.String()
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "1.0310")
	assert.Contains(t, out, "2024-05-01 09:30")
}

func TestRunDetail(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	id := uuid.MustParse("6f1c4bb8-5a7e-4d1c-9a55-0d6f2d1f4a10")
	run := &persistence.Run{
		ID: id, Kind: "montecarlo", Symbol: "^GSPC", TimesPerYear: 12, Iterations: 2, Seed: 42,
		YearlyInvestment: decimal.NewFromInt(12000), MeanRatio: 1.02,
		StartedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	p.RunDetail(run, nil)
	assert.Contains(t, buf.String(), "no samples stored")

	buf.Reset()
	p.RunDetail(run, []persistence.Sample{
		{RunID: id, Iteration: 0, Symbol: "^GSPC", StartYear: 1990, EndYear: 2024, TimesPerYear: 12, Ratio: 1.031},
		{RunID: id, Iteration: 1, Symbol: "^GSPC", StartYear: 2001, EndYear: 2024, TimesPerYear: 12, Ratio: 0.987},
	})
	out := buf.String()
	assert.Contains(t, out, "^GSPC montecarlo: yearly vs monthly")
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "$12000.00")
	assert.Contains(t, out, "2024-05-01 09:30:00")
	assert.Contains(t, out, "1.0310")
	assert.Contains(t, out, "0.9870")
	assert.NotContains(t, out, "no samples stored")
}
