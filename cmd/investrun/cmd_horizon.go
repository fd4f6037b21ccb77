package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/investrun/internal/report"
)

func newHorizonCmd(opts *rootOptions) *cobra.Command {
	var (
		startYear int
		markdown  string
	)

	cmd := &cobra.Command{
		Use:   "horizon [SYMBOL...]",
		Short: "Compare several indexes over the same recent horizon",
		Long: `Runs the yearly versus monthly comparison for each symbol starting at
--start (or the symbol's first full year when later) through the end year.
Without arguments the configured study symbols are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			symbols := args
			if len(symbols) == 0 {
				symbols = a.cfg.Study.Symbols
			}
			if !cmd.Flags().Changed("start") {
				startYear = a.cfg.Study.HorizonStartYear
			}

			rows, err := a.service.Horizon(cmd.Context(), symbols, startYear)
			if err != nil {
				return err
			}
			a.printer.Horizon(rows)

			if markdown == "" {
				return nil
			}
			f, err := os.Create(markdown)
			if err != nil {
				return err
			}
			report.HorizonMarkdown(f, rows)
			return f.Close()
		},
	}

	cmd.Flags().IntVar(&startYear, "start", 2014, "First investing year")
	cmd.Flags().StringVar(&markdown, "markdown", "", "Also write the table as markdown to this file")

	return cmd
}
