package delta

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Profile is the user record as returned by the platform. It carries the
// account cash balance.
type Profile struct {
	ID                int64           `json:"id,omitempty"`
	Username          string          `json:"username"`
	Balance           decimal.Decimal `json:"balance"`
	Level             int             `json:"level,omitempty"`
	XP                int             `json:"xp,omitempty"`
	FullName          string          `json:"fullName,omitempty"`
	Email             string          `json:"email,omitempty"`
	Phone             string          `json:"phone,omitempty"`
	Bio               string          `json:"bio,omitempty"`
	ProfilePictureURL string          `json:"profilePictureUrl,omitempty"`
}

// DisplayName returns the full name if any, the username otherwise.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// Position is a holding of a symbol in the user portfolio.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"` // negative for a short position.
	AveragePrice decimal.Decimal `json:"averagePrice"`
}

// Side is the direction of a trade.
type Side int

const (
	Buy Side = iota
	Sell
)

// String returns the platform name of the side.
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Path returns the trade endpoint segment for the side.
func (s Side) Path() string { return strings.ToLower(s.String()) }

// ParseSide parses "buy" or "sell", case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return 0, fmt.Errorf("invalid side %q, must be BUY or SELL", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// TradeRequest is the payload of a buy or sell order.
type TradeRequest struct {
	Symbol      string           `json:"symbol"`
	Quantity    decimal.Decimal  `json:"quantity"`
	TargetPrice *decimal.Decimal `json:"targetPrice"`
	StopLoss    *decimal.Decimal `json:"stopLoss"`
}

// Validate checks the request before it is sent.
func (r TradeRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", r.Quantity)
	}
	if r.TargetPrice != nil && !r.TargetPrice.IsPositive() {
		return fmt.Errorf("target price must be positive, got %s", r.TargetPrice)
	}
	if r.StopLoss != nil && !r.StopLoss.IsPositive() {
		return fmt.Errorf("stop loss must be positive, got %s", r.StopLoss)
	}
	return nil
}

// Order is an entry of the trade history.
type Order struct {
	ID             int64            `json:"id"`
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"type"`
	Price          decimal.Decimal  `json:"price"`
	Quantity       decimal.Decimal  `json:"quantity"`
	TargetPrice    *decimal.Decimal `json:"targetPrice,omitempty"`
	StopLoss       *decimal.Decimal `json:"stopLoss,omitempty"`
	Status         string           `json:"status"` // OPEN, CLOSED, FILLED
	RealizedPnl    *decimal.Decimal `json:"realizedPnl,omitempty"`
	ExecutionPrice *decimal.Decimal `json:"executionPrice,omitempty"`
	CreatedAt      Timestamp        `json:"createdAt"`
	ExecutionTime  Timestamp        `json:"executionTime"`
}
