package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/delta"
	"github.com/etnz/delta/fusion"
	md "github.com/nao1215/markdown"
)

func statsTable(stats []delta.MarketStat) md.TableSet {
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
		Header:    []string{"Symbol", "Name", "Price", "Change", "Volume"},
		Rows:      [][]string{},
	}
	for _, s := range stats {
		table.Rows = append(table.Rows, []string{
			s.Symbol,
			s.Name,
			delta.FormatMoney(s.Price),
			delta.FormatPercent(s.ChangePercent),
			s.Volume.StringFixed(0),
		})
	}
	return table
}

// StatsMarkdown renders a list of market stats under title.
func StatsMarkdown(title string, stats []delta.MarketStat) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1(title)
	if len(stats) == 0 {
		doc.PlainText("No matching asset.")
		return doc.String()
	}
	doc.Table(statsTable(stats))
	return doc.String()
}

// MoversMarkdown renders the top gainers and losers.
func MoversMarkdown(stats []delta.MarketStat, n int) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Market Movers")
	doc.H2("Top Gainers")
	doc.Table(statsTable(fusion.TopGainers(stats, n)))
	doc.H2("Top Losers")
	doc.Table(statsTable(fusion.TopLosers(stats, n)))
	return doc.String()
}

// PricesMarkdown renders the price snapshot.
func PricesMarkdown(prices delta.Prices) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Prices")
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"Symbol", "Price"},
		Rows:      [][]string{},
	}
	for _, s := range prices.Symbols() {
		table.Rows = append(table.Rows, []string{s, delta.FormatMoney(prices[s])})
	}
	doc.Table(table)
	return doc.String()
}

// ChartMarkdown renders the price history of the chart, with the day
// statistics of the symbol if stat is not nil.
func ChartMarkdown(c fusion.Chart, stat *delta.MarketStat) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1(fmt.Sprintf("%s %s", c.Symbol, c.Timeframe))

	if stat != nil {
		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
			Header:    []string{md.Bold(stat.Name), md.Bold(delta.FormatMoney(stat.Price))},
			Rows: [][]string{
				{"Day Change", delta.FormatPercent(stat.ChangePercent)},
				{"Day Open", delta.FormatMoney(fusion.DayOpen(*stat))},
			},
		})
	}

	if len(c.Points) == 0 {
		doc.PlainText("No price history yet.")
		return doc.String()
	}
	layout := "2006-01-02"
	if c.Timeframe.Intraday() {
		layout = "15:04:05"
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"Time", "Price"},
		Rows:      [][]string{},
	}
	for _, p := range c.Points {
		table.Rows = append(table.Rows, []string{p.Timestamp.Format(layout), delta.FormatMoney(p.Price)})
	}
	doc.Table(table)
	return doc.String()
}
