package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/investrun/internal/config"
	"github.com/sawpanic/investrun/internal/data"
	"github.com/sawpanic/investrun/internal/data/csvstore"
	httpapi "github.com/sawpanic/investrun/internal/interfaces/http"
	"github.com/sawpanic/investrun/internal/persistence"
)

func newFetchCmd(opts *rootOptions) *cobra.Command {
	var startYear int

	cmd := &cobra.Command{
		Use:   "fetch SYMBOL...",
		Short: "Download daily history into CSV files",
		Long: `Downloads daily bars for each symbol and writes SYMBOL.csv to the data
directory (--data-dir, or output.data_dir from the config, or ./data), so
later runs can use --data-dir offline.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.dataDir
			// the download itself must not read from the target directory
			fetchOpts := *opts
			fetchOpts.dataDir = ""

			a, err := openApp(cmd, &fetchOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if dir == "" {
				dir = a.cfg.Output.DataDir
			}
			if dir == "" {
				dir = "data"
			}
			store := csvstore.New(dir)

			start, end, err := a.loader.Range(startYear)
			if err != nil {
				return err
			}

			for _, symbol := range args {
				series, err := a.source.Fetch(cmd.Context(), symbol, start, end)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", symbol, err)
				}
				series.Sort()
				path, err := store.Save(series)
				if err != nil {
					return err
				}
				log.Info().Str("symbol", symbol).Int("bars", len(series.Bars)).Str("path", path).Msg("Saved")
				fmt.Fprintln(a.out, path)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&startYear, "start", data.FirstLoadYear, "First year to download")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the HTTP API with /health, /metrics, /compare/{symbol},
POST /montecarlo/{symbol}, /runs and the /ws/montecarlo/{symbol} stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sc := httpapi.DefaultServerConfig()
			sc.Host = a.cfg.Server.Host
			sc.Port = a.cfg.Server.Port
			sc.RequestTimeout = a.cfg.Server.RequestTimeout
			sc.Version = version
			if cmd.Flags().Changed("host") {
				sc.Host = host
			}
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			deps := httpapi.Deps{
				Service:  a.service,
				Metrics:  a.metrics,
				Breakers: a.breakers,
			}
			if a.db.IsEnabled() {
				deps.Database = a.db.Health
			}
			if a.yahoo != nil {
				deps.RateLimits = a.yahoo.RateLimits
			}

			srv, err := httpapi.NewServer(sc, deps)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "HTTP server host")
	cmd.Flags().IntVar(&port, "port", 8090, "HTTP server port")
	return cmd
}

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored Monte Carlo runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.service.ListRuns(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			a.printer.Runs(runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Only runs for this symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.AddCommand(newRunsShowCmd(opts))
	return cmd
}

func newRunsShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a stored run and its samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			run, samples, err := a.service.Run(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Run     *persistence.Run     `json:"run"`
					Samples []persistence.Sample `json:"samples"`
				}{run, samples})
			}
			a.printer.RunDetail(run, samples)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Prints the configuration after defaults are applied to --config. With
--write the result is saved as YAML to the given path instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			if writePath != "" {
				if err := config.Save(cfg, writePath); err != nil {
					return err
				}
				log.Info().Str("path", writePath).Msg("Configuration written")
				return nil
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&writePath, "write", "", "Write the effective configuration to this file")
	return cmd
}
