package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/investrun/internal/chart"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/report"
)

type monteCarloOptions struct {
	iterations   int
	frequencies  []int
	tradingMonth int
	seed         int64
	workers      int
	withChart    bool
}

func newMonteCarloCmd(opts *rootOptions) *cobra.Command {
	mc := &monteCarloOptions{}

	cmd := &cobra.Command{
		Use:     "montecarlo SYMBOL...",
		Aliases: []string{"mc"},
		Short:   "Run Monte Carlo horizon studies",
		Long: `Draws random start and end years, simulates both investors for every draw
and fits a trend of ratio against horizon length. One run per symbol and
frequency; runs are stored when the database is enabled.

Examples:
  investrun montecarlo ^GSPC --freq 2,4,12
  investrun montecarlo TQQQ BTC-USD --iterations 500 --freq monthly`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			applyMonteCarloDefaults(cmd, a, mc)

			for _, symbol := range args {
				results, err := runMonteCarlo(cmd.Context(), a, symbol, mc.iterations, mc)
				if err != nil {
					return err
				}
				if mc.withChart {
					if _, err := writeMonteCarloChart(a, symbol+" Monte Carlo", results, labelByFrequency); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&mc.iterations, "iterations", "n", 0, "Iterations per run (default from config)")
	cmd.Flags().Var(newFrequencyListValue(nil, &mc.frequencies), "freq", "Sub-annual frequencies, comma separated (default from config)")
	cmd.Flags().IntVar(&mc.tradingMonth, "month", 1, "Month the yearly investor buys in (1-12, -1 for random)")
	cmd.Flags().Int64Var(&mc.seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().IntVar(&mc.workers, "workers", 0, "Parallel workers (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&mc.withChart, "chart", true, "Write a scatter chart per symbol")

	return cmd
}

func applyMonteCarloDefaults(cmd *cobra.Command, a *app, mc *monteCarloOptions) {
	if mc.iterations <= 0 {
		mc.iterations = a.cfg.MonteCarlo.Iterations
	}
	if len(mc.frequencies) == 0 {
		mc.frequencies = a.cfg.MonteCarlo.Frequencies
	}
	if !cmd.Flags().Changed("seed") {
		mc.seed = a.cfg.MonteCarlo.Seed
	}
	if mc.workers <= 0 {
		mc.workers = a.cfg.MonteCarlo.Workers
	}
	if !cmd.Flags().Changed("chart") {
		mc.withChart = a.cfg.Output.Charts
	}
}

// runMonteCarlo runs one simulation per configured frequency on symbol
func runMonteCarlo(ctx context.Context, a *app, symbol string, iterations int, mc *monteCarloOptions) ([]*montecarlo.Result, error) {
	results := make([]*montecarlo.Result, 0, len(mc.frequencies))

	for _, freq := range mc.frequencies {
		cfg := montecarlo.Config{
			Iterations:   iterations,
			TimesPerYear: freq,
			TradingMonth: mc.tradingMonth,
			Seed:         mc.seed,
			Workers:      mc.workers,
		}

		progress := a.progress(fmt.Sprintf("%s %s", symbol, report.FrequencyName(freq)), iterations)
		res, err := a.service.MonteCarlo(ctx, symbol, cfg, func(montecarlo.Sample) { progress.Increment() })
		if err != nil && res == nil {
			progress.Fail(err.Error())
			return nil, err
		}
		progress.Finish()
		if err != nil {
			log.Warn().Err(err).Msg("Run completed but was not stored")
		}

		a.printer.MonteCarlo(res)
		results = append(results, res)
	}
	return results, nil
}

func labelByFrequency(res *montecarlo.Result) string {
	return "Ratio: " + report.FrequencyName(res.Config.TimesPerYear)
}

func labelBySymbol(res *montecarlo.Result) string {
	return "Ratio: " + report.FrequencyName(res.Config.TimesPerYear) + " " + res.Symbol
}

// writeMonteCarloChart plots every result as its own series
func writeMonteCarloChart(a *app, title string, results []*montecarlo.Result, label func(*montecarlo.Result) string) (string, error) {
	series := make([]chart.RatioSeries, 0, len(results))
	for _, res := range results {
		series = append(series, chart.RatioSeries{
			Label:  label(res),
			Points: res.Points(),
			Trend:  res.Trend,
		})
	}

	p, err := chart.MonteCarlo(title, series)
	if err != nil {
		return "", err
	}
	path, err := a.outPath(chart.FileName(title, "png"))
	if err != nil {
		return "", err
	}
	if err := chart.Save(p, path); err != nil {
		return "", err
	}
	log.Info().Str("path", path).Msg("Monte Carlo chart written")
	return path, nil
}
