// Package data loads daily index history from a Source and reduces it to
// monthly price books.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/metrics"
)

// FirstLoadYear is the earliest year the loader will request.
const FirstLoadYear = 1983

// ErrStartYear is returned when a requested start year is outside [FirstLoadYear, end year].
var ErrStartYear = errors.New("start year out of range")

// Source returns daily bars for symbol between start and end inclusive.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, start, end market.Date) (*market.Series, error)
}

// Loader fetches series and builds price books ending no later than EndYear.
type Loader struct {
	source  Source
	endYear int
	metrics *metrics.Registry
}

// NewLoader creates a loader; m may be nil.
func NewLoader(source Source, endYear int, m *metrics.Registry) *Loader {
	return &Loader{source: source, endYear: endYear, metrics: m}
}

// EndYear is the last year loaded books may cover.
func (l *Loader) EndYear() int { return l.endYear }

// Range returns the daily window requested for a start year: January 1st of
// startYear through December 30th of the end year.
func (l *Loader) Range(startYear int) (market.Date, market.Date, error) {
	if startYear < FirstLoadYear || startYear > l.endYear {
		return market.Date{}, market.Date{}, fmt.Errorf("%d not in [%d, %d]: %w", startYear, FirstLoadYear, l.endYear, ErrStartYear)
	}
	return market.Date{Year: startYear, Month: time.January, Day: 1},
		market.Date{Year: l.endYear, Month: time.December, Day: 30}, nil
}

// LoadBook fetches symbol from startYear and builds its price book.
func (l *Loader) LoadBook(ctx context.Context, symbol string, startYear int) (*market.PriceBook, error) {
	start, end, err := l.Range(startYear)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	series, err := l.source.Fetch(ctx, symbol, start, end)
	l.metrics.ObserveFetch(symbol, time.Since(began), err)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", symbol, l.source.Name(), err)
	}

	series.Sort()
	endYear := l.lastFullYear(series)
	book, err := market.BuildPriceBook(*series, endYear)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("symbol", symbol).
		Str("source", l.source.Name()).
		Int("bars", len(series.Bars)).
		Int("months", book.Len()).
		Int("earliest_year", book.EarliestYear).
		Int("end_year", book.EndYear()).
		Msg("Price book loaded")

	return book, nil
}

// lastFullYear caps the configured end year at the last year whose December
// is present in series. Books never include a trailing partial year.
func (l *Loader) lastFullYear(series *market.Series) int {
	last, ok := series.Last()
	if !ok {
		return l.endYear
	}
	year := last.Date.Year
	if last.Date.Month != time.December {
		year--
	}
	if year < l.endYear {
		log.Warn().
			Str("symbol", series.Symbol).
			Str("last_bar", last.Date.String()).
			Int("end_year", year).
			Msg("History ends before the configured end year")
		return year
	}
	return l.endYear
}
