// Package invest simulates investors buying an index on the first trading day
// of a month: a yearly (lump-sum) investor and a sub-annual (dollar-cost
// averaging) investor that splits the same yearly amount across the year.
package invest

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sawpanic/investrun/internal/market"
)

var (
	// ErrInvalidFrequency is returned when a purchase frequency does not divide twelve months
	ErrInvalidFrequency = errors.New("invalid investment frequency")
	// ErrNoTradingMonth is returned when no month from the target month through December has a trading day
	ErrNoTradingMonth = errors.New("no trading month left in year")
	// ErrInvalidAmount is returned for non-positive investment amounts
	ErrInvalidAmount = errors.New("investment amount must be positive")
	// ErrNoRandomSource is returned when RandomMonth is requested without a random source
	ErrNoRandomSource = errors.New("random trading month requires a random source")
)

// RandomMonth makes the yearly investor pick a uniformly random month each year.
const RandomMonth = -1

// SharesFor converts a dollar amount into fractional shares at price.
func SharesFor(investment, price float64) float64 {
	return investment / price
}

// Purchase is a single buy.
type Purchase struct {
	Date   market.Date `json:"date"`
	Shares float64     `json:"shares"`
	Amount float64     `json:"amount"`
}

// Purchases is an investor's ledger in purchase order.
type Purchases struct {
	Entries     []Purchase `json:"entries"`
	TotalShares float64    `json:"total_shares"`
	Invested    float64    `json:"invested"`

	index map[market.Date]int
}

func (p *Purchases) add(date market.Date, shares, amount float64) {
	if p.index == nil {
		p.index = make(map[market.Date]int)
	}
	if i, ok := p.index[date]; ok {
		p.Entries[i].Shares += shares
		p.Entries[i].Amount += amount
	} else {
		p.index[date] = len(p.Entries)
		p.Entries = append(p.Entries, Purchase{Date: date, Shares: shares, Amount: amount})
	}
	p.TotalShares += shares
	p.Invested += amount
}

// SharesOn returns the shares bought on date.
func (p *Purchases) SharesOn(date market.Date) float64 {
	if i, ok := p.index[date]; ok {
		return p.Entries[i].Shares
	}
	return 0
}

// ValidFrequency reports whether timesPerYear purchases split twelve months evenly.
func ValidFrequency(timesPerYear int) bool {
	return timesPerYear > 0 && timesPerYear <= 12 && 12%timesPerYear == 0
}

// Yearly invests yearlyInvestment once a year on the first trading day of
// month, for every year in [startYear, endYear]. With RandomMonth the month is
// drawn from rng each year. A month without a trading day rolls forward to the
// next month of the same year.
func Yearly(book *market.PriceBook, yearlyInvestment float64, startYear, endYear, month int, rng *rand.Rand) (*Purchases, error) {
	if err := validate(book, yearlyInvestment, startYear, endYear); err != nil {
		return nil, err
	}
	if month != RandomMonth && (month < 1 || month > 12) {
		return nil, fmt.Errorf("trading month %d: %w", month, market.ErrMonthOutOfRange)
	}
	if month == RandomMonth && rng == nil {
		return nil, ErrNoRandomSource
	}

	p := &Purchases{}
	for year := startYear; year <= endYear; year++ {
		m := month
		if month == RandomMonth {
			m = rng.Intn(12) + 1
		}

		if err := buy(book, p, year, m, yearlyInvestment); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SubAnnual invests yearlyInvestment split evenly over timesPerYear purchases.
// Purchases fall every 12/timesPerYear months ending in December, so a
// quarterly investor buys in March, June, September and December.
func SubAnnual(book *market.PriceBook, yearlyInvestment float64, startYear, endYear, timesPerYear int) (*Purchases, error) {
	if err := validate(book, yearlyInvestment, startYear, endYear); err != nil {
		return nil, err
	}
	if !ValidFrequency(timesPerYear) {
		return nil, fmt.Errorf("%d times per year: %w", timesPerYear, ErrInvalidFrequency)
	}

	span := 12 / timesPerYear
	amount := yearlyInvestment / float64(timesPerYear)

	p := &Purchases{}
	for year := startYear; year <= endYear; year++ {
		for event := 1; event <= timesPerYear; event++ {
			if err := buy(book, p, year, event*span, amount); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func buy(book *market.PriceBook, p *Purchases, year, month int, amount float64) error {
	for m := month; m <= 12; m++ {
		date, err := book.FirstMarketDay(year, time.Month(m))
		if errors.Is(err, market.ErrNoTradingDay) {
			continue
		}
		if err != nil {
			return err
		}

		price, _ := book.Open(date)
		p.add(date, SharesFor(amount, price), amount)
		return nil
	}
	return fmt.Errorf("%s %d from month %d: %w", book.Symbol, year, month, ErrNoTradingMonth)
}

func validate(book *market.PriceBook, amount float64, startYear, endYear int) error {
	if book == nil {
		return errors.New("nil price book")
	}
	if amount <= 0 {
		return fmt.Errorf("%v: %w", amount, ErrInvalidAmount)
	}
	if startYear > endYear {
		return fmt.Errorf("%d > %d: %w", startYear, endYear, market.ErrInvalidRange)
	}
	return nil
}

// Ratio compares total shares held by the yearly investor to the sub-annual
// investor. Both investors spend the same dollars, so this is also the ratio of
// their portfolio values at any common date after the last purchase.
func Ratio(yearly, subAnnual *Purchases) (float64, error) {
	if subAnnual == nil || subAnnual.TotalShares == 0 {
		return 0, errors.New("sub-annual investor holds no shares")
	}
	if yearly == nil {
		return 0, errors.New("nil yearly purchases")
	}
	return yearly.TotalShares / subAnnual.TotalShares, nil
}
