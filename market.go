package delta

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Prices is a snapshot of the latest price of each tradable symbol.
//
// A snapshot is always replaced as a whole, it is never merged into a previous
// one so that a symbol delisted by the platform does not linger.
type Prices map[string]decimal.Decimal

// Price returns the price of symbol, and whether it is known.
func (p Prices) Price(symbol string) (decimal.Decimal, bool) {
	v, ok := p[symbol]
	return v, ok
}

// Symbols returns the snapshot symbols in alphabetical order.
func (p Prices) Symbols() []string {
	return slices.Sorted(maps.Keys(p))
}

// Clone returns a copy of the snapshot.
func (p Prices) Clone() Prices { return maps.Clone(p) }

// MarketStat describes one tradable asset in the market overview.
type MarketStat struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"changePercent"` // day change, in percent.
	Volume        decimal.Decimal `json:"volume"`        // simulated by the platform.
}

// PricePoint is one sample of a symbol's price history.
type PricePoint struct {
	Timestamp Timestamp       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Timeframe is the window of a price history request.
type Timeframe string

// Timeframes supported by the platform.
const (
	Timeframe1M  Timeframe = "1M"
	Timeframe5M  Timeframe = "5M"
	Timeframe30M Timeframe = "30M"
	Timeframe1H  Timeframe = "1H"
	Timeframe1D  Timeframe = "1D"
	Timeframe1W  Timeframe = "1W"
)

// Timeframes lists all timeframes from the shortest to the longest.
var Timeframes = []Timeframe{Timeframe1M, Timeframe5M, Timeframe30M, Timeframe1H, Timeframe1D, Timeframe1W}

// ParseTimeframe parses a timeframe label, case-insensitive. Empty means 1M.
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return Timeframe1M, nil
	}
	tf := Timeframe(strings.ToUpper(s))
	if !slices.Contains(Timeframes, tf) {
		return "", fmt.Errorf("unknown timeframe %q, valid timeframes are %v", s, Timeframes)
	}
	return tf, nil
}

// Intraday returns true for timeframes shorter than a day.
func (tf Timeframe) Intraday() bool {
	switch tf {
	case Timeframe1D, Timeframe1W:
		return false
	}
	return true
}
