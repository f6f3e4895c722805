package delta

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the platform's single cash currency.
const Currency = money.USD

// D converts a number to a decimal, it is a shortcut used mostly in tests and
// literals.
func D[T float64 | int | int64 | string](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		return decimal.RequireFromString(v)
	}
	return decimal.Zero
}

// currency returns the platform currency, never nil.
func currency() money.Currency {
	// to get a never nil currency I need to call the Money constructor
	return *money.New(0, Currency).Currency()
}

// FormatMoney returns the amount formatted in the platform currency, e.g. "$1,234.50".
func FormatMoney(amount decimal.Decimal) string {
	cur := currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// FormatSignedMoney is like FormatMoney but always prints the sign.
// 0 is represented as a "-"
func FormatSignedMoney(amount decimal.Decimal) string {
	if amount.IsZero() {
		return "-"
	}
	if amount.IsPositive() {
		return "+" + FormatMoney(amount)
	}
	return FormatMoney(amount)
}

// FormatPercent returns a signed percentage with two decimals, e.g. "+1.25%".
func FormatPercent(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if !p.IsNegative() {
		s = "+" + s
	}
	return s
}
