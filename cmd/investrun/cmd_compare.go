package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/investrun/internal/chart"
	"github.com/sawpanic/investrun/internal/compare"
	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/report"
)

func newCompareCmd(opts *rootOptions) *cobra.Command {
	var (
		req       compare.Request
		withChart bool
	)

	cmd := &cobra.Command{
		Use:   "compare SYMBOL",
		Short: "Compare a yearly investor with a sub-annual investor",
		Long: `Simulates both investors on SYMBOL from --start to --end and prints the
shares each ends with and their ratio (yearly / sub-annual).

Examples:
  investrun compare ^GSPC
  investrun compare ^GSPC --start 2000 --freq quarterly --chart`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("chart") {
				withChart = a.cfg.Output.Charts
			}
			_, err = runCompare(cmd, a, args[0], req, withChart)
			return err
		},
	}

	cmd.Flags().IntVar(&req.StartYear, "start", 0, "First investing year (default: first full year of data)")
	cmd.Flags().IntVar(&req.EndYear, "end", 0, "Last investing year (default: configured end year)")
	cmd.Flags().Var(newFrequencyValue(12, &req.TimesPerYear, false), "freq", "Sub-annual purchases per year (2,3,4,6,12 or name)")
	cmd.Flags().IntVar(&req.TradingMonth, "month", 1, "Month the yearly investor buys in (1-12)")
	cmd.Flags().Float64Var(&req.YearlyInvestment, "amount", 0, "Amount invested per year (default from config)")
	cmd.Flags().BoolVar(&withChart, "chart", true, "Write a portfolio value chart")

	return cmd
}

// runCompare prints one comparison and optionally charts both portfolios
func runCompare(cmd *cobra.Command, a *app, symbol string, req compare.Request, withChart bool) (*compare.Row, error) {
	ctx := cmd.Context()

	row, err := a.service.Compare(ctx, symbol, req)
	if err != nil {
		return nil, err
	}
	a.printer.Comparison(row)

	if !withChart {
		return row, nil
	}

	book, err := a.service.Book(ctx, symbol)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("%s portfolio %d-%d", symbol, row.StartYear, row.EndYear)
	p, err := chart.Portfolio(title, []chart.ValueLine{
		{Label: "Yearly investor", Values: invest.PortfolioValues(book, row.Yearly)},
		{Label: report.FrequencyName(row.TimesPerYear) + " investor", Values: invest.PortfolioValues(book, row.SubAnnual)},
	})
	if err != nil {
		return nil, err
	}
	path, err := a.outPath(chart.FileName(title, "png"))
	if err != nil {
		return nil, err
	}
	if err := chart.Save(p, path); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("Portfolio chart written")
	return row, nil
}
