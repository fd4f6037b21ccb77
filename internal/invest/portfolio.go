package invest

import "github.com/sawpanic/investrun/internal/market"

// ValuePoint is a portfolio valuation at a monthly book date.
type ValuePoint struct {
	Date   market.Date `json:"date"`
	Shares float64     `json:"shares"`
	Value  float64     `json:"value"`
}

// PortfolioValues values holdings at every book date, not inflation adjusted.
// Months without purchases carry the held shares forward, so sparse investors
// still get a monthly series.
func PortfolioValues(book *market.PriceBook, purchases *Purchases) []ValuePoint {
	dates := book.Dates()
	out := make([]ValuePoint, 0, len(dates))

	held := 0.0
	for _, d := range dates {
		held += purchases.SharesOn(d)
		open, _ := book.Open(d)
		out = append(out, ValuePoint{Date: d, Shares: held, Value: held * open})
	}
	return out
}
