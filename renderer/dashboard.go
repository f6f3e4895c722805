// Package renderer renders the read model as markdown.
package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/delta"
	"github.com/etnz/delta/fusion"
	md "github.com/nao1215/markdown"
)

// staleMark flags a value whose last refresh failed.
func staleMark[T any](e fusion.Entry[T]) string {
	if e.Stale {
		return " (stale)"
	}
	return ""
}

// known returns s, or a placeholder if the entry never received a value.
func known[T any](e fusion.Entry[T], s string) string {
	if !e.Known {
		return "…"
	}
	return s + staleMark(e)
}

// DashboardMarkdown renders the account overview of the view.
func DashboardMarkdown(v fusion.View) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Dashboard of %s", v.Profile.Value.DisplayName()))

	balance, _ := v.Balance()
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{md.Bold("Equity"), md.Bold(known(v.Profile, delta.FormatMoney(v.Equity())))},
		Rows: [][]string{
			{"Cash Balance", known(v.Profile, delta.FormatMoney(balance))},
			{"Positions Value", known(v.Positions, delta.FormatMoney(v.Valuation()))},
			{"Unrealized P/L", known(v.Positions, delta.FormatSignedMoney(v.TotalPL()))},
			{"Unread Notifications", known(v.Notifications, fmt.Sprint(v.Unread()))},
		},
	})

	if len(v.Positions.Value) > 0 {
		doc.H2("Positions")
		doc.Table(PositionsTable(v.Positions.Value, v.Prices.Value))
	}

	if len(v.Stats.Value) > 0 {
		doc.H2("Top Gainers")
		doc.Table(statsTable(fusion.TopGainers(v.Stats.Value, fusion.MoversCount)))
		doc.H2("Top Losers")
		doc.Table(statsTable(fusion.TopLosers(v.Stats.Value, fusion.MoversCount)))
	}

	return doc.String()
}

// PositionsTable returns the positions valued at prices.
func PositionsTable(positions []delta.Position, prices delta.Prices) md.TableSet {
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"Symbol", "Quantity", "Avg. Price", "Price", "Value", "P/L"},
		Rows:   [][]string{},
	}
	for _, p := range positions {
		price := "-"
		if x, ok := prices.Price(p.Symbol); ok {
			price = delta.FormatMoney(x)
		}
		table.Rows = append(table.Rows, []string{
			p.Symbol,
			p.Quantity.String(),
			delta.FormatMoney(p.AveragePrice),
			price,
			delta.FormatMoney(fusion.Valuation([]delta.Position{p}, prices)),
			delta.FormatSignedMoney(fusion.UnrealizedPL(p, prices)),
		})
	}
	return table
}
