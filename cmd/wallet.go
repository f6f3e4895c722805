package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etnz/delta"
	"github.com/etnz/delta/fusion"
	"github.com/etnz/delta/renderer"
	"github.com/etnz/delta/wallet"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type walletCmd struct {
	kind   string // "deposit" or "withdraw"
	amount string
	yes    bool
}

func (c *walletCmd) Name() string { return c.kind }
func (c *walletCmd) Synopsis() string {
	if c.kind == "withdraw" {
		return "withdraw cash from the account"
	}
	return "deposit cash in the account"
}
func (c *walletCmd) Usage() string {
	return fmt.Sprintf(`dtc %s -a <amount> [-y]

  Deposits are limited to $1,000,000 each, withdrawals to the available
  balance. A deposit asks for the payment confirmation unless -y is set.
  Every operation is recorded in the wallet journal.
`, c.kind)
}

func (c *walletCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "a", "", "Amount of the operation")
	f.BoolVar(&c.yes, "y", false, "Confirm the payment without asking")
}

func (c *walletCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, err := delta.ParseKind(c.kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	// an amount that is not a number is rejected by the wizard, as zero.
	amount, _ := decimal.NewFromString(strings.ReplaceAll(c.amount, ",", ""))

	a, status := protected(ctx)
	if a == nil {
		return status
	}
	board, feeds, err := a.startFeeds(ctx)
	if err != nil {
		return fail(err)
	}
	defer feeds.Stop()
	if err := a.waitFor(ctx, board, fusion.TopicProfile, func(v fusion.View) bool { return v.Profile.Known }); err != nil {
		a.logger.Warn("balance unknown", zap.Error(err))
	}

	id, _ := a.session.Identity()
	var success wallet.State
	opts := []wallet.Option{
		wallet.WithSettleDelay(a.cfg.Wallet.SettleDelay),
		wallet.WithCloseDelay(a.cfg.Wallet.CloseDelay),
		wallet.WithLogger(a.logger),
		wallet.WithCue(func(s wallet.State) {
			fmt.Fprint(os.Stderr, "\a")
			success = s
		}),
	}
	if a.cfg.Wallet.Journal != "" {
		opts = append(opts, wallet.WithJournal(wallet.NewJournal(a.cfg.Wallet.Journal), id.Handle))
	}
	w := wallet.NewWizard(a.client, board, feeds, opts...)
	if err := w.SetKind(kind); err != nil {
		return fail(err)
	}
	if err := w.SetAmount(amount); err != nil {
		return fail(err)
	}

	show := func(s wallet.State) {
		balance, known := board.Balance()
		printMarkdown(renderer.WizardMarkdown(s, balance, known))
	}
	done := w.Done()

	if kind == delta.Withdraw {
		fmt.Fprintln(os.Stderr, "Processing transaction…")
	}
	if err := w.Submit(ctx); err != nil {
		return fail(err)
	}
	if w.State().Step == wallet.StepPayment {
		show(w.State())
		if !c.yes && !confirm("Confirm payment?") {
			fmt.Println("Deposit cancelled")
			return subcommands.ExitSuccess
		}
		fmt.Fprintln(os.Stderr, "Processing transaction…")
		if err := w.Confirm(ctx); err != nil {
			return fail(err)
		}
	}
	show(success)
	a.reconcile(ctx, board, feeds)

	// the feeds keep running until the wizard closes.
	select {
	case <-done:
	case <-ctx.Done():
	}
	return subcommands.ExitSuccess
}

// reconcile waits for the account refreshed after a wallet operation, and
// prints the balance known by the platform.
func (a *app) reconcile(ctx context.Context, board *fusion.Board, feeds *fusion.Feeds) {
	timeout := time.NewTimer(a.cfg.API.Timeout)
	defer timeout.Stop()
	select {
	case <-feeds.AccountRefreshed():
	case <-timeout.C:
		a.logger.Warn("account not refreshed", zap.Duration("timeout", a.cfg.API.Timeout))
		return
	case <-ctx.Done():
		return
	}
	if balance, ok := board.Balance(); ok {
		printMarkdown(fmt.Sprintf("Account balance: %s\n", delta.FormatMoney(balance)))
	}
}

type transactionsCmd struct{}

func (*transactionsCmd) Name() string             { return "transactions" }
func (*transactionsCmd) Synopsis() string         { return "print the wallet history" }
func (*transactionsCmd) Usage() string            { return "dtc transactions\n" }
func (*transactionsCmd) SetFlags(f *flag.FlagSet) {}

func (c *transactionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := protected(ctx)
	if a == nil {
		return status
	}
	id, _ := a.session.Identity()
	txs, err := a.client.Transactions(ctx, id.Handle)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.TransactionsMarkdown(txs))
	return subcommands.ExitSuccess
}

type journalCmd struct {
	pending bool
}

func (*journalCmd) Name() string     { return "journal" }
func (*journalCmd) Synopsis() string { return "print the local wallet journal" }
func (*journalCmd) Usage() string {
	return `dtc journal [-pending]

  Prints the wallet operations recorded on this machine. Pending operations
  were interrupted: check 'dtc transactions' to know whether they happened.
`
}

func (c *journalCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.pending, "pending", false, "Print only the pending operations")
}

func (c *journalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	if a.cfg.Wallet.Journal == "" {
		fmt.Fprintln(os.Stderr, "Error: the wallet journal is disabled")
		return subcommands.ExitFailure
	}
	entries, err := wallet.NewJournal(a.cfg.Wallet.Journal).Entries()
	if err != nil {
		return fail(err)
	}
	if c.pending {
		entries = wallet.Pending(entries)
	}
	printMarkdown(renderer.JournalMarkdown(entries))
	return subcommands.ExitSuccess
}
