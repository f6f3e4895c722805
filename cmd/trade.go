package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/delta"
	"github.com/etnz/delta/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type tradeCmd struct {
	side     string // "buy" or "sell"
	symbol   string
	quantity string
	target   string
	stop     string
}

func (c *tradeCmd) Name() string     { return c.side }
func (c *tradeCmd) Synopsis() string { return c.side + " a quantity of a symbol at the market price" }
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`dtc %s -s <symbol> -q <quantity> [-target <price>] [-stop <price>]

  Places a market order. With -target and -stop the position is closed by the
  platform when the price reaches one of them.
`, c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol to trade")
	f.StringVar(&c.quantity, "q", "", "Quantity to trade")
	f.StringVar(&c.target, "target", "", "Optional take profit price")
	f.StringVar(&c.stop, "stop", "", "Optional stop loss price")
}

// optionalPrice parses s, nil if empty.
func optionalPrice(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return &d, nil
}

func (c *tradeCmd) request() (delta.TradeRequest, error) {
	r := delta.TradeRequest{Symbol: strings.ToUpper(c.symbol)}
	var err error
	if r.Quantity, err = decimal.NewFromString(c.quantity); err != nil {
		return r, fmt.Errorf("invalid quantity %q: %w", c.quantity, err)
	}
	if r.TargetPrice, err = optionalPrice("target price", c.target); err != nil {
		return r, err
	}
	if r.StopLoss, err = optionalPrice("stop loss", c.stop); err != nil {
		return r, err
	}
	return r, r.Validate()
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	side, err := delta.ParseSide(c.side)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	req, err := c.request()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, status := protected(ctx)
	if a == nil {
		return status
	}
	ack, err := a.client.Trade(ctx, side, req)
	if err != nil {
		return fail(err)
	}
	fmt.Println(ack)
	return subcommands.ExitSuccess
}

type ordersCmd struct{}

func (*ordersCmd) Name() string             { return "orders" }
func (*ordersCmd) Synopsis() string         { return "print the trade history" }
func (*ordersCmd) Usage() string            { return "dtc orders\n" }
func (*ordersCmd) SetFlags(f *flag.FlagSet) {}

func (c *ordersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := protected(ctx)
	if a == nil {
		return status
	}
	orders, err := a.client.Orders(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.OrdersMarkdown(orders))
	return subcommands.ExitSuccess
}
