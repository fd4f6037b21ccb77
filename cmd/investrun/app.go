package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/investrun/internal/application"
	"github.com/sawpanic/investrun/internal/config"
	"github.com/sawpanic/investrun/internal/data"
	"github.com/sawpanic/investrun/internal/data/cache"
	"github.com/sawpanic/investrun/internal/data/csvstore"
	"github.com/sawpanic/investrun/internal/infrastructure/db"
	rlog "github.com/sawpanic/investrun/internal/log"
	"github.com/sawpanic/investrun/internal/metrics"
	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/providers/yahoo"
	"github.com/sawpanic/investrun/internal/report"
)

// app is the wired runtime shared by the commands
type app struct {
	cfg      *config.Config
	metrics  *metrics.Registry
	breakers *circuit.Manager
	source   data.Source
	yahoo    *yahoo.Client // nil when reading CSV files
	loader   *data.Loader
	db       *db.Manager
	service  *application.Service
	printer  *report.Printer
	out      io.Writer
	outDir   string
}

// openApp loads configuration and wires the data and persistence stack
func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		metrics:  metrics.NewRegistry(),
		breakers: circuit.NewManager(),
		out:      cmd.OutOrStdout(),
		outDir:   cfg.Output.Dir,
	}
	if opts.outDir != "" {
		a.outDir = opts.outDir
	}
	a.printer = report.NewPrinter(a.out, useColor(opts.colorMode, a.out))

	a.breakers.OnStateChange(func(provider string, _, to gobreaker.State) {
		a.metrics.SetBreakerState(provider, to)
	})

	a.source = a.buildSource(ctx, opts)
	a.loader = data.NewLoader(a.source, cfg.Study.EndYear, a.metrics)

	a.db, err = db.NewManager(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	a.service = application.NewService(application.Options{
		Loader:           a.loader,
		Runs:             a.db.Runs(),
		Metrics:          a.metrics,
		YearlyInvestment: cfg.Study.YearlyInvestment,
	})

	log.Debug().
		Str("source", a.source.Name()).
		Bool("database", a.db.IsEnabled()).
		Int("end_year", cfg.Study.EndYear).
		Msg("Application wired")

	return a, nil
}

// buildSource picks CSV files when a data directory is given, otherwise the
// Yahoo client behind the price cache
func (a *app) buildSource(ctx context.Context, opts *rootOptions) data.Source {
	dataDir := opts.dataDir
	if dataDir != "" {
		return csvstore.New(dataDir)
	}

	a.breakers.AddProvider(yahoo.ProviderName, a.cfg.Provider.Breaker)
	a.yahoo = yahoo.NewClient(a.cfg.Provider.Yahoo, a.breakers)
	var src data.Source = a.yahoo

	if !a.cfg.Cache.Enabled || opts.noCache {
		return src
	}

	c := cache.NewAuto(a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisDB)
	if rc, ok := c.(*cache.RedisCache); ok {
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", a.cfg.Cache.RedisAddr).Msg("Redis unavailable, using in-memory cache")
			c = cache.NewMemory()
		}
	}
	return cache.NewCachedSource(src, c, a.cfg.Cache.TTL, a.metrics)
}

// progress returns a progress reporter drawing to stderr when it is a terminal
func (a *app) progress(name string, total int) *rlog.Progress {
	pc := rlog.DefaultProgressConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		pc.Out = os.Stderr
	}
	return rlog.NewProgress(name, total, pc)
}

// outPath returns a path inside the output directory, creating it
func (a *app) outPath(name string) (string, error) {
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(a.outDir, name), nil
}

// Close releases the database connection
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing database")
		}
	}
}
