package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/investrun/internal/compare"
	"github.com/sawpanic/investrun/internal/data"
	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/metrics"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/persistence"
)

var (
	// ErrPersistenceDisabled is returned by run queries when no database is configured.
	ErrPersistenceDisabled = errors.New("run persistence is disabled")
	// ErrRunNotFound is returned when a stored run id does not exist.
	ErrRunNotFound = errors.New("run not found")
)

const (
	defaultLoadTimeout = 2 * time.Minute
	maxParallelLoads   = 4
)

// Run kinds stored with persisted results.
const (
	KindMonteCarlo = "montecarlo"
	KindCompare    = "compare"
	KindHorizon    = "horizon"
)

// Options wires a Service.
type Options struct {
	Loader           *data.Loader
	Runs             persistence.RunsRepo // nil disables persistence
	Metrics          *metrics.Registry
	YearlyInvestment float64
	LoadTimeout      time.Duration // per book download; default 2m
}

// Service runs comparisons and simulations on loaded price books. Books are
// loaded once per symbol and reused.
type Service struct {
	loader           *data.Loader
	runs             persistence.RunsRepo
	metrics          *metrics.Registry
	yearlyInvestment float64
	loadTimeout      time.Duration

	mu    sync.Mutex
	books map[string]*bookEntry
}

type bookEntry struct {
	once sync.Once
	book *market.PriceBook
	err  error
}

// NewService creates a service.
func NewService(opts Options) *Service {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	return &Service{
		loader:           opts.Loader,
		runs:             opts.Runs,
		metrics:          opts.Metrics,
		yearlyInvestment: opts.YearlyInvestment,
		loadTimeout:      opts.LoadTimeout,
		books:            make(map[string]*bookEntry),
	}
}

// Book returns the price book for symbol, loading it on first use. Failed
// loads are not remembered. The download is shared by every concurrent caller,
// so it runs under its own timeout rather than the first caller's context.
func (s *Service) Book(ctx context.Context, symbol string) (*market.PriceBook, error) {
	s.mu.Lock()
	e, ok := s.books[symbol]
	if !ok {
		e = &bookEntry{}
		s.books[symbol] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		e.book, e.err = s.loader.LoadBook(lctx, symbol, data.FirstLoadYear)
	})

	if e.err != nil {
		s.mu.Lock()
		if s.books[symbol] == e {
			delete(s.books, symbol)
		}
		s.mu.Unlock()
		return nil, e.err
	}
	return e.book, nil
}

// Books loads several symbols concurrently, preserving order. The first
// failure stops loads that have not started yet.
func (s *Service) Books(ctx context.Context, symbols []string) ([]*market.PriceBook, error) {
	books := make([]*market.PriceBook, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			book, err := s.Book(gctx, symbol)
			if err != nil {
				return err
			}
			books[i] = book
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return books, nil
}

// YearlyInvestment is the default amount invested per year.
func (s *Service) YearlyInvestment() float64 { return s.yearlyInvestment }

// EndYear is the last year covered by loaded books.
func (s *Service) EndYear() int { return s.loader.EndYear() }

// Compare runs a single yearly versus sub-annual comparison.
func (s *Service) Compare(ctx context.Context, symbol string, req compare.Request) (*compare.Row, error) {
	book, err := s.Book(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if req.YearlyInvestment == 0 {
		req.YearlyInvestment = s.yearlyInvestment
	}

	row, err := compare.Run(book, req)
	if err != nil {
		return nil, err
	}
	s.metrics.SimulationDone(KindCompare)
	return row, nil
}

// Horizon compares every symbol from startYear (or its first full year) to the end year.
func (s *Service) Horizon(ctx context.Context, symbols []string, startYear int) ([]compare.Row, error) {
	books, err := s.Books(ctx, symbols)
	if err != nil {
		return nil, err
	}
	rows, err := compare.Horizon(books, startYear, s.EndYear(), s.yearlyInvestment)
	if err != nil {
		return nil, err
	}
	s.metrics.SimulationDone(KindHorizon)
	return rows, nil
}

// MonteCarlo runs a simulation on symbol and persists it when a repository
// is configured. onSample may be nil.
func (s *Service) MonteCarlo(ctx context.Context, symbol string, cfg montecarlo.Config, onSample func(montecarlo.Sample)) (*montecarlo.Result, error) {
	book, err := s.Book(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if cfg.YearlyInvestment == 0 {
		cfg.YearlyInvestment = s.yearlyInvestment
	}

	runner := montecarlo.NewRunner(book)
	runner.OnSample = func(sample montecarlo.Sample) {
		s.metrics.ObserveSample(symbol, sample.Ratio)
		if onSample != nil {
			onSample(sample)
		}
	}

	res, err := runner.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.metrics.SimulationDone(KindMonteCarlo)

	log.Info().
		Str("symbol", symbol).
		Str("run_id", res.ID.String()).
		Int("iterations", len(res.Samples)).
		Int("times_per_year", cfg.TimesPerYear).
		Float64("mean_ratio", res.Summary.MeanRatio).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Monte Carlo finished")

	if err := s.Persist(ctx, res); err != nil && !errors.Is(err, ErrPersistenceDisabled) {
		return res, fmt.Errorf("persist run %s: %w", res.ID, err)
	}
	return res, nil
}

// Persist stores a Monte Carlo result with its samples.
func (s *Service) Persist(ctx context.Context, res *montecarlo.Result) error {
	if s.runs == nil {
		return ErrPersistenceDisabled
	}

	run, samples, err := ToRun(res)
	if err != nil {
		return err
	}
	return s.runs.InsertRun(ctx, run, samples)
}

// ListRuns returns persisted runs, newest first.
func (s *Service) ListRuns(ctx context.Context, symbol string, limit int) ([]persistence.Run, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.runs.ListRuns(ctx, symbol, limit)
}

// Run returns a stored run with its samples.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (*persistence.Run, []persistence.Sample, error) {
	if s.runs == nil {
		return nil, nil, ErrPersistenceDisabled
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	samples, err := s.runs.Samples(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, samples, nil
}

// ToRun converts a simulation result to its persisted form.
func ToRun(res *montecarlo.Result) (persistence.Run, []persistence.Sample, error) {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return persistence.Run{}, nil, fmt.Errorf("encode summary: %w", err)
	}

	run := persistence.Run{
		ID:               res.ID,
		Kind:             KindMonteCarlo,
		Symbol:           res.Symbol,
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
		YearlyInvestment: decimal.NewFromFloat(res.Config.YearlyInvestment).Round(2),
		TimesPerYear:     res.Config.TimesPerYear,
		Iterations:       res.Config.Iterations,
		Seed:             res.Config.Seed,
		MeanRatio:        res.Summary.MeanRatio,
		Summary:          summary,
	}
	if res.Trend != nil {
		slope, intercept := res.Trend.Slope, res.Trend.Intercept
		run.TrendSlope = &slope
		run.TrendIntercept = &intercept
	}

	samples := make([]persistence.Sample, len(res.Samples))
	for i, smp := range res.Samples {
		samples[i] = persistence.Sample{
			RunID:        res.ID,
			Iteration:    smp.Iteration,
			Symbol:       res.Symbol,
			StartYear:    smp.StartYear,
			EndYear:      smp.EndYear,
			TimesPerYear: smp.TimesPerYear,
			Ratio:        smp.Ratio,
		}
	}
	return run, samples, nil
}
