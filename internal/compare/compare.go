// Package compare runs the yearly versus sub-annual comparison on one or more
// price books over a fixed investing window.
package compare

import (
	"fmt"

	"github.com/sawpanic/investrun/internal/invest"
	"github.com/sawpanic/investrun/internal/market"
)

// Request describes one comparison.
type Request struct {
	StartYear        int     `json:"start_year"`
	EndYear          int     `json:"end_year"`
	YearlyInvestment float64 `json:"yearly_investment"`
	TradingMonth     int     `json:"trading_month"`
	TimesPerYear     int     `json:"times_per_year"`
}

// Row is the outcome of comparing both investors on one book.
type Row struct {
	Symbol            string            `json:"symbol"`
	StartYear         int               `json:"start_year"`
	EndYear           int               `json:"end_year"`
	TimesPerYear      int               `json:"times_per_year"`
	TotalSharesYearly float64           `json:"total_shares_yearly"`
	TotalSharesSub    float64           `json:"total_shares_sub_annual"`
	Ratio             float64           `json:"ratio"`
	Yearly            *invest.Purchases `json:"-"`
	SubAnnual         *invest.Purchases `json:"-"`
}

// Run compares a yearly investor with a sub-annual investor on book.
// A zero StartYear uses the book's earliest year and a zero EndYear its end year.
func Run(book *market.PriceBook, req Request) (*Row, error) {
	start, end := req.StartYear, req.EndYear
	if start == 0 {
		start = book.EarliestYear
	}
	if end == 0 {
		end = book.EndYear()
	}
	if req.TradingMonth == 0 {
		req.TradingMonth = 1
	}
	if req.TimesPerYear == 0 {
		req.TimesPerYear = 12
	}
	if err := book.ValidateRange(start, end); err != nil {
		return nil, err
	}

	yearly, err := invest.Yearly(book, req.YearlyInvestment, start, end, req.TradingMonth, nil)
	if err != nil {
		return nil, fmt.Errorf("%s yearly investor: %w", book.Symbol, err)
	}
	sub, err := invest.SubAnnual(book, req.YearlyInvestment, start, end, req.TimesPerYear)
	if err != nil {
		return nil, fmt.Errorf("%s sub-annual investor: %w", book.Symbol, err)
	}
	ratio, err := invest.Ratio(yearly, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", book.Symbol, err)
	}

	return &Row{
		Symbol:            book.Symbol,
		StartYear:         start,
		EndYear:           end,
		TimesPerYear:      req.TimesPerYear,
		TotalSharesYearly: yearly.TotalShares,
		TotalSharesSub:    sub.TotalShares,
		Ratio:             ratio,
		Yearly:            yearly,
		SubAnnual:         sub,
	}, nil
}

// Horizon compares every book over the same window, starting each at
// max(startYear, book.EarliestYear) so younger assets join when their data begins.
func Horizon(books []*market.PriceBook, startYear, endYear int, yearlyInvestment float64) ([]Row, error) {
	rows := make([]Row, 0, len(books))
	for _, book := range books {
		start := startYear
		if book.EarliestYear > start {
			start = book.EarliestYear
		}
		end := endYear
		if end == 0 || end > book.EndYear() {
			end = book.EndYear()
		}

		row, err := Run(book, Request{
			StartYear:        start,
			EndYear:          end,
			YearlyInvestment: yearlyInvestment,
			TradingMonth:     1,
			TimesPerYear:     12,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, *row)
	}
	return rows, nil
}
