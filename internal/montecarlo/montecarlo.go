// Package montecarlo estimates how the yearly/sub-annual share ratio depends on
// the investing horizon by simulating many randomly drawn start and end years.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/stats"
)

// RandomFrequency draws a sub-annual frequency from Frequencies per iteration.
const RandomFrequency = -1

// ErrInvalidIterations is returned when a simulation asks for no iterations.
var ErrInvalidIterations = errors.New("iterations must be positive")

// Frequencies lists the sub-annual purchase counts a simulation accepts.
var Frequencies = []int{2, 3, 4, 6, 12}

// Config parameterizes a simulation.
type Config struct {
	Iterations       int     `json:"iterations" yaml:"iterations"`
	TimesPerYear     int     `json:"times_per_year" yaml:"times_per_year"`
	TradingMonth     int     `json:"trading_month" yaml:"trading_month"`
	YearlyInvestment float64 `json:"yearly_investment" yaml:"yearly_investment"`
	Seed             int64   `json:"seed" yaml:"seed"`
	Workers          int     `json:"workers" yaml:"workers"`
}

// Validate checks the configuration and fills defaults for trading month and
// workers. TradingMonth may be invest.RandomMonth, drawn per simulated year.
func (c *Config) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("%d: %w", c.Iterations, ErrInvalidIterations)
	}
	if c.TimesPerYear != RandomFrequency && !supported(c.TimesPerYear) {
		return fmt.Errorf("%d times per year: %w", c.TimesPerYear, invest.ErrInvalidFrequency)
	}
	if c.YearlyInvestment <= 0 {
		return fmt.Errorf("%v: %w", c.YearlyInvestment, invest.ErrInvalidAmount)
	}
	if c.TradingMonth == 0 {
		c.TradingMonth = 1
	}
	if c.TradingMonth != invest.RandomMonth && (c.TradingMonth < 1 || c.TradingMonth > 12) {
		return fmt.Errorf("trading month %d: %w", c.TradingMonth, market.ErrMonthOutOfRange)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return nil
}

func supported(n int) bool {
	for _, f := range Frequencies {
		if f == n {
			return true
		}
	}
	return false
}

// Sample is the outcome of one iteration.
type Sample struct {
	Iteration    int     `json:"iteration"`
	StartYear    int     `json:"start_year"`
	EndYear      int     `json:"end_year"`
	TimesPerYear int     `json:"times_per_year"`
	Ratio        float64 `json:"ratio"`
}

// Horizon is the number of years between the first and last purchase year.
func (s Sample) Horizon() int { return s.EndYear - s.StartYear }

// Result is a finished simulation.
type Result struct {
	ID         uuid.UUID     `json:"id"`
	Symbol     string        `json:"symbol"`
	Config     Config        `json:"config"`
	Samples    []Sample      `json:"samples"`
	Trend      *stats.Trend  `json:"trend,omitempty"`
	Summary    stats.Summary `json:"summary"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Points converts samples to horizon/ratio points.
func (r *Result) Points() []stats.Point {
	out := make([]stats.Point, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = stats.Point{Horizon: s.Horizon(), Ratio: s.Ratio}
	}
	return out
}

// Runner executes simulations against a price book.
type Runner struct {
	book *market.PriceBook

	// OnSample, when set, receives every sample as soon as it is computed.
	// It is called from worker goroutines and must be safe for concurrent use.
	OnSample func(Sample)
}

// NewRunner creates a runner for book.
func NewRunner(book *market.PriceBook) *Runner {
	return &Runner{book: book}
}

// Run executes cfg.Iterations iterations. Every iteration owns a random source
// derived from the seed and its index, so results do not depend on Workers.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if r.book == nil {
		return nil, errors.New("nil price book")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r.book.EarliestYear > r.book.EndYear() {
		return nil, fmt.Errorf("%s: earliest year %d after end year %d: %w",
			r.book.Symbol, r.book.EarliestYear, r.book.EndYear(), market.ErrYearOutOfRange)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	res := &Result{
		ID:        uuid.New(),
		Symbol:    r.book.Symbol,
		Config:    cfg,
		Samples:   make([]Sample, cfg.Iterations),
		StartedAt: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := 0; i < cfg.Iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := r.iterate(cfg, i)
			if err != nil {
				return fmt.Errorf("iteration %d: %w", i, err)
			}
			res.Samples[i] = s
			if r.OnSample != nil {
				r.OnSample(s)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := res.Points()
	res.Summary = stats.Summarize(points)
	if trend, err := stats.FitTrend(stats.Split(points)); err == nil {
		res.Trend = &trend
	}
	res.FinishedAt = time.Now().UTC()
	return res, nil
}

func (r *Runner) iterate(cfg Config, i int) (Sample, error) {
	rng := rand.New(rand.NewSource(iterationSeed(cfg.Seed, i)))

	times := cfg.TimesPerYear
	if times == RandomFrequency {
		times = Frequencies[rng.Intn(len(Frequencies))]
	}

	start, end := drawYears(rng, r.book.EarliestYear, r.book.EndYear())

	yearly, err := invest.Yearly(r.book, cfg.YearlyInvestment, start, end, cfg.TradingMonth, rng)
	if err != nil {
		return Sample{}, err
	}
	sub, err := invest.SubAnnual(r.book, cfg.YearlyInvestment, start, end, times)
	if err != nil {
		return Sample{}, err
	}
	ratio, err := invest.Ratio(yearly, sub)
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Iteration:    i,
		StartYear:    start,
		EndYear:      end,
		TimesPerYear: times,
		Ratio:        ratio,
	}, nil
}

// drawYears draws start and end uniformly in [lo, hi], redrawing until end >= start.
func drawYears(rng *rand.Rand, lo, hi int) (int, int) {
	span := hi - lo + 1
	for {
		start := lo + rng.Intn(span)
		end := lo + rng.Intn(span)
		if end >= start {
			return start, end
		}
	}
}

func iterationSeed(seed int64, i int) int64 {
	// splitmix64 step keeps neighbouring iterations decorrelated
	z := uint64(seed) + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
