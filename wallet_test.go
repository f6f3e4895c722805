package delta

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"deposit", Deposit, false},
		{"WITHDRAW", Withdraw, false},
		{"Withdraw", Withdraw, false},
		{"transfer", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) got %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWalletTransaction_JSON(t *testing.T) {
	var got WalletTransaction
	input := `{"id":7,"type":"WITHDRAW","amount":12.5,"createdAt":"2025-01-10T14:03:11"}`
	if err := json.Unmarshal([]byte(input), &got); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if got.Kind != Withdraw || !got.Amount.Equal(D("12.5")) || got.ID != 7 {
		t.Errorf("Unmarshal() got %+v", got)
	}
	if err := json.Unmarshal([]byte(`{"type":"REFUND"}`), &got); err == nil {
		t.Errorf("Unmarshal(REFUND) expected an error")
	}
}

func TestTransactionRequest_Apply(t *testing.T) {
	tests := []struct {
		req     TransactionRequest
		balance decimal.Decimal
		want    decimal.Decimal
	}{
		{TransactionRequest{Deposit, D(250)}, D(1000), D(1250)},
		{TransactionRequest{Withdraw, D(250)}, D(1000), D(750)},
		{TransactionRequest{Withdraw, D("0.01")}, D("0.01"), D(0)},
	}
	for _, tt := range tests {
		if got := tt.req.Apply(tt.balance); !got.Equal(tt.want) {
			t.Errorf("%v.Apply(%v) got %v, want %v", tt.req, tt.balance, got, tt.want)
		}
	}
}
