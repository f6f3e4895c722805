package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/etnz/delta"
	"github.com/etnz/delta/fusion"
	"github.com/etnz/delta/renderer"
	"github.com/google/subcommands"
)

type pricesCmd struct{}

func (*pricesCmd) Name() string             { return "prices" }
func (*pricesCmd) Synopsis() string         { return "print the latest price of every symbol" }
func (*pricesCmd) Usage() string            { return "dtc prices\n" }
func (*pricesCmd) SetFlags(f *flag.FlagSet) {}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	prices, err := a.client.Prices(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.PricesMarkdown(prices))
	return subcommands.ExitSuccess
}

type moversCmd struct {
	n int
}

func (*moversCmd) Name() string     { return "movers" }
func (*moversCmd) Synopsis() string { return "print the top gainers and losers of the day" }
func (*moversCmd) Usage() string {
	return `dtc movers [-n <count>]
`
}

func (c *moversCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.n, "n", fusion.MoversCount, "Number of gainers and losers")
}

func (c *moversCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.n < 0 {
		fmt.Fprintf(os.Stderr, "Error: -n must not be negative, got %d\n", c.n)
		return subcommands.ExitUsageError
	}
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	stats, err := a.client.Stats(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.MoversMarkdown(stats, c.n))
	return subcommands.ExitSuccess
}

type searchCmd struct{}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search the market by symbol or name" }
func (*searchCmd) Usage() string {
	return `dtc search <query>

  Lists assets whose symbol or name contains the query, case-insensitive.
  An empty query lists the whole market.
`
}
func (*searchCmd) SetFlags(f *flag.FlagSet) {}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	stats, err := a.client.Stats(ctx)
	if err != nil {
		return fail(err)
	}
	query := strings.Join(f.Args(), " ")
	title := "Market"
	if strings.TrimSpace(query) != "" {
		title = fmt.Sprintf("Search %q", strings.TrimSpace(query))
	}
	printMarkdown(renderer.StatsMarkdown(title, fusion.Search(stats, query)))
	return subcommands.ExitSuccess
}

type chartCmd struct {
	symbol    string
	timeframe string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "print the price history of a symbol" }
func (*chartCmd) Usage() string {
	return `dtc chart [-s <symbol>] [-tf <timeframe>]

  Prints the price history of the symbol with its day statistics.
  Timeframes are 1M, 5M, 30M, 1H, 1D and 1W.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", fusion.DefaultSymbol, "Symbol to chart")
	f.StringVar(&c.timeframe, "tf", string(delta.Timeframe1M), "Timeframe of the history")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tf, err := delta.ParseTimeframe(c.timeframe)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	symbol := strings.ToUpper(c.symbol)
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	points, err := a.client.History(ctx, symbol, tf)
	if err != nil {
		return fail(err)
	}
	stats, err := a.client.Stats(ctx)
	if err != nil {
		return fail(err)
	}
	chart := fusion.Chart{Symbol: symbol, Timeframe: tf, Points: fusion.Series(points)}
	var stat *delta.MarketStat
	if s, ok := fusion.SelectStat(stats, symbol); ok {
		stat = &s
	}
	printMarkdown(renderer.ChartMarkdown(chart, stat))
	return subcommands.ExitSuccess
}

type watchCmd struct {
	symbol    string
	timeframe string
	every     time.Duration
	verbose   bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "live dashboard of the account" }
func (*watchCmd) Usage() string {
	return `dtc watch [-s <symbol>] [-tf <timeframe>] [-every <duration>] [-v]

  Polls the platform and redraws the dashboard until interrupted.
  With -s the price history of the symbol is charted below it.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol to chart")
	f.StringVar(&c.timeframe, "tf", string(delta.Timeframe1M), "Timeframe of the chart")
	f.DurationVar(&c.every, "every", time.Second, "Minimum time between two redraws")
	f.BoolVar(&c.verbose, "v", false, "Print the feeds statistics on exit")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tf, err := delta.ParseTimeframe(c.timeframe)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	a, status := protected(ctx)
	if a == nil {
		return status
	}
	board, feeds, err := a.startFeeds(ctx)
	if err != nil {
		return fail(err)
	}
	defer func() {
		feeds.Stop()
		if c.verbose {
			printFeedStats(feeds)
		}
	}()
	if c.symbol != "" {
		if err := feeds.Chart(strings.ToUpper(c.symbol), tf); err != nil {
			return fail(err)
		}
	}

	dirty := make(chan struct{}, 1)
	cancel := board.Subscribe(func(fusion.Topic) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer cancel()

	ticker := time.NewTicker(c.every)
	defer ticker.Stop()
	changed := false
	for {
		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		case <-dirty:
			changed = true
		case <-ticker.C:
			if !changed {
				continue
			}
			changed = false
			c.draw(board.View())
		}
	}
}

func (c *watchCmd) draw(v fusion.View) {
	var b strings.Builder
	b.WriteString(renderer.DashboardMarkdown(v))
	if c.symbol != "" {
		var stat *delta.MarketStat
		if s, ok := fusion.SelectStat(v.Stats.Value, v.Chart.Value.Symbol); ok {
			stat = &s
		}
		b.WriteString("\n")
		b.WriteString(renderer.ChartMarkdown(v.Chart.Value, stat))
	}
	fmt.Print("\033[H\033[2J")
	printMarkdown(b.String())
}

func printFeedStats(feeds *fusion.Feeds) {
	stats := feeds.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		s := stats[name]
		fmt.Fprintf(os.Stderr, "%-24s requests=%d delivered=%d errors=%d discarded=%d\n",
			name, s.Requests, s.Delivered, s.Errors, s.Discarded)
	}
}
