package fusion

import (
	"cmp"
	"slices"
	"strings"

	"github.com/etnz/delta"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// DefaultSymbol is the symbol charted when none is selected.
const DefaultSymbol = "BTC"

// MoversCount is the number of top gainers and losers on the dashboard.
const MoversCount = 3

// markPrice returns the price of p, or its average price if the symbol has no price.
func markPrice(p delta.Position, prices delta.Prices) decimal.Decimal {
	if price, ok := prices.Price(p.Symbol); ok {
		return price
	}
	return p.AveragePrice
}

// Valuation returns the market value of positions: the sum of quantity times
// price. A symbol without a price is valued at its average price.
func Valuation(positions []delta.Position, prices delta.Prices) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Quantity.Mul(markPrice(p, prices)))
	}
	return total
}

// Equity returns balance plus the valuation of positions.
func Equity(balance decimal.Decimal, positions []delta.Position, prices delta.Prices) decimal.Decimal {
	return balance.Add(Valuation(positions, prices))
}

// UnrealizedPL returns (price - average price) * quantity. It is zero for a
// symbol without a price.
func UnrealizedPL(p delta.Position, prices delta.Prices) decimal.Decimal {
	return markPrice(p, prices).Sub(p.AveragePrice).Mul(p.Quantity)
}

// TotalPL returns the sum of the unrealized P/L of positions.
func TotalPL(positions []delta.Position, prices delta.Prices) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(UnrealizedPL(p, prices))
	}
	return total
}

// byChange sorts stats by descending change, then by symbol.
func byChange(a, b delta.MarketStat) int {
	if c := b.ChangePercent.Cmp(a.ChangePercent); c != 0 {
		return c
	}
	return cmp.Compare(a.Symbol, b.Symbol)
}

// TopGainers returns the n stats with the highest change, highest first.
// A negative n is treated as zero.
func TopGainers(stats []delta.MarketStat, n int) []delta.MarketStat {
	sorted := slices.Clone(stats)
	slices.SortStableFunc(sorted, byChange)
	return sorted[:max(0, min(n, len(sorted)))]
}

// TopLosers returns the n stats with the lowest change, lowest first.
// A negative n is treated as zero.
func TopLosers(stats []delta.MarketStat, n int) []delta.MarketStat {
	sorted := slices.Clone(stats)
	slices.SortStableFunc(sorted, func(a, b delta.MarketStat) int { return byChange(b, a) })
	return sorted[:max(0, min(n, len(sorted)))]
}

// Search returns the stats whose symbol or name contains query, ignoring
// case. An empty query matches everything.
func Search(stats []delta.MarketStat, query string) []delta.MarketStat {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	var found []delta.MarketStat
	for _, s := range stats {
		if strings.Contains(fold.String(s.Symbol), q) || strings.Contains(fold.String(s.Name), q) {
			found = append(found, s)
		}
	}
	return found
}

// SelectStat returns the stat of symbol, or of DefaultSymbol if symbol is empty.
func SelectStat(stats []delta.MarketStat, symbol string) (delta.MarketStat, bool) {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	i := slices.IndexFunc(stats, func(s delta.MarketStat) bool { return strings.EqualFold(s.Symbol, symbol) })
	if i < 0 {
		return delta.MarketStat{}, false
	}
	return stats[i], true
}

// Series returns a time ordered copy of points.
func Series(points []delta.PricePoint) []delta.PricePoint {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b delta.PricePoint) int { return a.Timestamp.Compare(b.Timestamp.Time) })
	return sorted
}

// DayOpen returns the price at the start of the day, derived from the
// current price and the day change.
func DayOpen(s delta.MarketStat) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(s.ChangePercent.Div(decimal.NewFromInt(100)))
	if factor.IsZero() {
		return s.Price
	}
	return s.Price.Div(factor)
}

// UnreadCount returns the number of unread notifications.
func UnreadCount(n []delta.Notification) int {
	count := 0
	for _, x := range n {
		if !x.Read {
			count++
		}
	}
	return count
}
