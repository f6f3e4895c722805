package delta

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a wallet operation.
type Kind int

const (
	Deposit Kind = iota
	Withdraw
)

// DepositLimit is the largest amount accepted in a single deposit.
var DepositLimit = decimal.NewFromInt(1_000_000)

// String returns the platform name of the kind.
func (k Kind) String() string {
	switch k {
	case Deposit:
		return "DEPOSIT"
	case Withdraw:
		return "WITHDRAW"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Path returns the wallet endpoint segment for the kind.
func (k Kind) Path() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	}
	panic(fmt.Sprintf("unknown wallet kind %d", int(k)))
}

// ParseKind parses "deposit" or "withdraw", case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "DEPOSIT":
		return Deposit, nil
	case "WITHDRAW":
		return Withdraw, nil
	}
	return 0, fmt.Errorf("invalid wallet operation %q, must be DEPOSIT or WITHDRAW", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// TransactionRequest is a validated wallet operation request.
type TransactionRequest struct {
	Kind   Kind
	Amount decimal.Decimal
}

// Apply returns the balance after the request is applied to balance.
func (r TransactionRequest) Apply(balance decimal.Decimal) decimal.Decimal {
	if r.Kind == Withdraw {
		return balance.Sub(r.Amount)
	}
	return balance.Add(r.Amount)
}

// WalletTransaction is an entry of the wallet history.
type WalletTransaction struct {
	ID        int64           `json:"id"`
	Kind      Kind            `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt Timestamp       `json:"createdAt"`
}
