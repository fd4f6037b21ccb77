package market

import (
	"fmt"
	"time"
)

// PriceBook maps the first trading day of each month to that day's opening price.
type PriceBook struct {
	Symbol       string
	EarliestYear int

	endYear int
	dates   []Date
	opens   map[Date]float64
}

// BuildPriceBook reduces a daily series to monthly opens.
//
// The book starts at the first full year in the series: when the first bar is
// not in January the year is skipped. For every month up to endYear the first
// day is moved off a weekend to Monday and then forward until a bar exists.
// Months with no bar at all are left out.
func BuildPriceBook(series Series, endYear int) (*PriceBook, error) {
	first, ok := series.First()
	if !ok {
		return nil, fmt.Errorf("%s: %w", series.Symbol, ErrEmptySeries)
	}

	byDate := make(map[Date]Bar, len(series.Bars))
	for _, b := range series.Bars {
		if _, dup := byDate[b.Date]; !dup {
			byDate[b.Date] = b
		}
	}

	earliest := first.Date.Year
	if first.Date.Month != time.January {
		earliest++
	}

	book := &PriceBook{
		Symbol:       series.Symbol,
		EarliestYear: earliest,
		endYear:      endYear,
		opens:        make(map[Date]float64),
	}

	for year := earliest; year <= endYear; year++ {
		for month := time.January; month <= time.December; month++ {
			day, found := firstBarInMonth(byDate, year, month)
			if !found {
				continue
			}
			book.dates = append(book.dates, day)
			book.opens[day] = byDate[day].Open
		}
	}

	if len(book.dates) == 0 {
		return nil, fmt.Errorf("%s: %w", series.Symbol, ErrNoFullYear)
	}

	return book, nil
}

func firstBarInMonth(byDate map[Date]Bar, year int, month time.Month) (Date, bool) {
	day := Date{Year: year, Month: month, Day: 1}
	switch day.Weekday() {
	case time.Saturday:
		day = day.AddDays(2)
	case time.Sunday:
		day = day.AddDays(1)
	}

	for day.Month == month {
		if _, ok := byDate[day]; ok {
			return day, true
		}
		day = day.AddDays(1)
	}
	return Date{}, false
}

// NewPriceBook builds a book directly from monthly opens, mainly for offline
// fixtures. Dates must be ascending.
func NewPriceBook(symbol string, earliestYear, endYear int, dates []Date, opens []float64) (*PriceBook, error) {
	if len(dates) != len(opens) {
		return nil, fmt.Errorf("dates and opens length mismatch: %d != %d", len(dates), len(opens))
	}

	book := &PriceBook{
		Symbol:       symbol,
		EarliestYear: earliestYear,
		endYear:      endYear,
		opens:        make(map[Date]float64, len(dates)),
	}
	for i, d := range dates {
		if i > 0 && !dates[i-1].Before(d) {
			return nil, fmt.Errorf("dates not ascending at %s", d)
		}
		book.dates = append(book.dates, d)
		book.opens[d] = opens[i]
	}
	return book, nil
}

// EndYear is the last year the book covers.
func (b *PriceBook) EndYear() int { return b.endYear }

// Len is the number of monthly entries.
func (b *PriceBook) Len() int { return len(b.dates) }

// Dates returns the monthly dates in ascending order.
func (b *PriceBook) Dates() []Date {
	out := make([]Date, len(b.dates))
	copy(out, b.dates)
	return out
}

// Open returns the opening price recorded for date.
func (b *PriceBook) Open(date Date) (float64, bool) {
	v, ok := b.opens[date]
	return v, ok
}

// FirstMarketDay returns the book entry for the given year and month.
func (b *PriceBook) FirstMarketDay(year int, month time.Month) (Date, error) {
	if year < MinYear || year > b.endYear {
		return Date{}, fmt.Errorf("%d: %w", year, ErrYearOutOfRange)
	}
	if month < time.January || month > time.December {
		return Date{}, fmt.Errorf("%d: %w", int(month), ErrMonthOutOfRange)
	}

	for _, d := range b.dates {
		if d.Year == year && d.Month == month {
			return d, nil
		}
		if d.Year > year {
			break
		}
	}
	return Date{}, fmt.Errorf("%s %04d-%02d: %w", b.Symbol, year, int(month), ErrNoTradingDay)
}

// ValidateRange checks that an investing window lies inside the book.
func (b *PriceBook) ValidateRange(startYear, endYear int) error {
	if startYear > endYear {
		return fmt.Errorf("%d > %d: %w", startYear, endYear, ErrInvalidRange)
	}
	if startYear < b.EarliestYear || endYear > b.endYear {
		return fmt.Errorf("%s covers %d-%d, requested %d-%d: %w",
			b.Symbol, b.EarliestYear, b.endYear, startYear, endYear, ErrYearOutOfRange)
	}
	return nil
}
