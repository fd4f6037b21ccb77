package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/investrun/internal/compare"
	rlog "github.com/sawpanic/investrun/internal/log"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/report"
)

func newStudyCmd(opts *rootOptions) *cobra.Command {
	mc := &monteCarloOptions{tradingMonth: 1}
	var highBetaIterations int

	cmd := &cobra.Command{
		Use:   "study",
		Short: "Reproduce the full lump-sum versus DCA analysis",
		Long: `Runs the complete analysis and writes charts plus study.md to the output
directory:

  1. benchmark comparison over all available years against a monthly
     investor, with the portfolio value chart
  2. benchmark Monte Carlo at the configured frequencies
  3. multi-index table from the horizon start year
  4. high-beta Monte Carlo, monthly investor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			applyMonteCarloDefaults(cmd, a, mc)
			mc.withChart = true
			if highBetaIterations <= 0 {
				highBetaIterations = mc.iterations / 2
				if highBetaIterations == 0 {
					highBetaIterations = 1
				}
			}
			return runStudy(cmd, a, mc, highBetaIterations)
		},
	}

	cmd.Flags().IntVarP(&mc.iterations, "iterations", "n", 0, "Benchmark Monte Carlo iterations (default from config)")
	cmd.Flags().IntVar(&highBetaIterations, "high-beta-iterations", 0, "High-beta Monte Carlo iterations (default half of --iterations)")
	cmd.Flags().Int64Var(&mc.seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().IntVar(&mc.workers, "workers", 0, "Parallel workers (default GOMAXPROCS)")

	return cmd
}

func runStudy(cmd *cobra.Command, a *app, mc *monteCarloOptions, highBetaIterations int) error {
	ctx := cmd.Context()
	study := a.cfg.Study
	steps := rlog.NewStepLogger("study", []string{"load", "compare", "montecarlo", "horizon", "high-beta", "report"})

	fail := func(err error) error {
		steps.Fail(err)
		return err
	}

	steps.StartStep("load")
	symbols := append([]string{study.Benchmark}, study.Symbols...)
	symbols = append(symbols, study.HighBeta...)
	if _, err := a.service.Books(ctx, unique(symbols)); err != nil {
		return fail(err)
	}

	steps.StartStep("compare")
	row, err := runCompare(cmd, a, study.Benchmark, compare.Request{TradingMonth: 1, TimesPerYear: 12}, true)
	if err != nil {
		return fail(err)
	}

	steps.StartStep("montecarlo")
	benchmark, err := runMonteCarlo(ctx, a, study.Benchmark, mc.iterations, mc)
	if err != nil {
		return fail(err)
	}
	benchmarkChart, err := writeMonteCarloChart(a, study.Benchmark+" Monte Carlo", benchmark, labelByFrequency)
	if err != nil {
		return fail(err)
	}

	steps.StartStep("horizon")
	rows, err := a.service.Horizon(ctx, study.Symbols, study.HorizonStartYear)
	if err != nil {
		return fail(err)
	}
	a.printer.Horizon(rows)

	steps.StartStep("high-beta")
	monthly := *mc
	monthly.frequencies = []int{12}
	var highBeta []*montecarlo.Result
	for _, symbol := range study.HighBeta {
		results, err := runMonteCarlo(ctx, a, symbol, highBetaIterations, &monthly)
		if err != nil {
			return fail(err)
		}
		highBeta = append(highBeta, results...)
	}
	highBetaChart := ""
	if len(highBeta) > 0 {
		if highBetaChart, err = writeMonteCarloChart(a, "High beta Monte Carlo", highBeta, labelBySymbol); err != nil {
			return fail(err)
		}
	}

	steps.StartStep("report")
	path, err := a.outPath("study.md")
	if err != nil {
		return fail(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(f, "# Lump sum versus dollar cost averaging\n\nGenerated %s, yearly investment %s, data through %d.\n\n",
		time.Now().UTC().Format(time.RFC3339), report.Money(study.YearlyInvestment), study.EndYear)
	fmt.Fprintf(f, "## %s %d-%d, yearly vs monthly\n\nRatio %s (yearly %s shares, monthly %s shares).\n\n",
		row.Symbol, row.StartYear, row.EndYear, report.Ratio(row.Ratio), report.Shares(row.TotalSharesYearly), report.Shares(row.TotalSharesSub))
	fmt.Fprintf(f, "## %s Monte Carlo\n\n", study.Benchmark)
	report.MonteCarloMarkdown(f, benchmark)
	fmt.Fprintf(f, "\n![%s Monte Carlo](%s)\n\n## Horizon from %d\n\n", study.Benchmark, chartRef(benchmarkChart), study.HorizonStartYear)
	report.HorizonMarkdown(f, rows)
	if len(highBeta) > 0 {
		fmt.Fprint(f, "\n## High beta Monte Carlo\n\n")
		report.MonteCarloMarkdown(f, highBeta)
		fmt.Fprintf(f, "\n![High beta Monte Carlo](%s)\n", chartRef(highBetaChart))
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}

	steps.Finish()
	fmt.Fprintf(a.out, "Study written to %s\n", path)
	return nil
}

func chartRef(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
