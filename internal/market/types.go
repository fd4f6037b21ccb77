package market

import (
	"errors"
	"sort"
)

var (
	// ErrEmptySeries is returned when a daily series holds no bars
	ErrEmptySeries = errors.New("series has no bars")
	// ErrNoFullYear is returned when no month between the earliest full year and the end year has a trading day
	ErrNoFullYear = errors.New("series has no complete year of data")
	// ErrYearOutOfRange is returned for lookups outside the book's supported years
	ErrYearOutOfRange = errors.New("year out of range")
	// ErrMonthOutOfRange is returned for months outside 1..12
	ErrMonthOutOfRange = errors.New("month out of range")
	// ErrNoTradingDay is returned when a month has no trading day in the book
	ErrNoTradingDay = errors.New("no trading day in month")
	// ErrInvalidRange is returned when a start year lies after the end year
	ErrInvalidRange = errors.New("start year after end year")
)

// MinYear is the earliest year a price book lookup accepts.
const MinYear = 1920

// Bar is a single daily OHLCV record.
type Bar struct {
	Date   Date    `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Series is the daily history of one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Sort orders bars by date and drops duplicate days, keeping the first seen.
func (s *Series) Sort() {
	sort.SliceStable(s.Bars, func(i, j int) bool {
		return s.Bars[i].Date.Before(s.Bars[j].Date)
	})

	out := s.Bars[:0]
	for i, b := range s.Bars {
		if i > 0 && b.Date == out[len(out)-1].Date {
			continue
		}
		out = append(out, b)
	}
	s.Bars = out
}

// First returns the earliest bar.
func (s *Series) First() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[0], true
}

// Last returns the latest bar.
func (s *Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}
