package delta

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		input   string
		want    Side
		wantErr bool
	}{
		{"buy", Buy, false},
		{"SELL", Sell, false},
		{"short", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSide(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSide(%q) got %v, want %v", tt.input, got, tt.want)
		}
	}
	if got, want := Sell.Path(), "sell"; got != want {
		t.Errorf("Sell.Path() got %q, want %q", got, want)
	}
}

func TestTradeRequest_Validate(t *testing.T) {
	neg := D(-1)
	pos := D(90)
	tests := []struct {
		name    string
		req     TradeRequest
		wantErr bool
	}{
		{"market order", TradeRequest{Symbol: "BTC", Quantity: D("0.5")}, false},
		{"with bounds", TradeRequest{Symbol: "BTC", Quantity: D(1), TargetPrice: &pos, StopLoss: &pos}, false},
		{"no symbol", TradeRequest{Quantity: D(1)}, true},
		{"zero quantity", TradeRequest{Symbol: "BTC", Quantity: decimal.Zero}, true},
		{"negative stop", TradeRequest{Symbol: "BTC", Quantity: D(1), StopLoss: &neg}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrder_JSON(t *testing.T) {
	var o Order
	input := `{"id":1,"symbol":"ETH","type":"SELL","price":2000,"quantity":2,"status":"FILLED","createdAt":1736517791123}`
	if err := json.Unmarshal([]byte(input), &o); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if o.Side != Sell || o.Symbol != "ETH" || !o.Quantity.Equal(D(2)) || o.CreatedAt.IsZero() {
		t.Errorf("Unmarshal() got %+v", o)
	}
}

func TestProfile_DisplayName(t *testing.T) {
	if got, want := (Profile{Username: "ada"}).DisplayName(), "ada"; got != want {
		t.Errorf("DisplayName() got %q, want %q", got, want)
	}
	if got, want := (Profile{Username: "ada", FullName: "Ada L."}).DisplayName(), "Ada L."; got != want {
		t.Errorf("DisplayName() got %q, want %q", got, want)
	}
}
