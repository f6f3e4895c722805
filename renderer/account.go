package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/delta"
	md "github.com/nao1215/markdown"
)

const timeLayout = "2006-01-02 15:04"

func formatTime(t delta.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// ProfileMarkdown renders the user profile.
func ProfileMarkdown(p delta.Profile) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1(p.DisplayName())
	rows := [][]string{
		{"Username", p.Username},
		{"Level", fmt.Sprintf("%d (%d XP)", p.Level, p.XP)},
	}
	for _, f := range []struct{ name, value string }{
		{"Email", p.Email},
		{"Phone", p.Phone},
		{"Bio", p.Bio},
	} {
		if f.value != "" {
			rows = append(rows, []string{f.name, f.value})
		}
	}
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft},
		Header:    []string{md.Bold("Balance"), md.Bold(delta.FormatMoney(p.Balance))},
		Rows:      rows,
	})
	return doc.String()
}

// OrdersMarkdown renders the trade history.
func OrdersMarkdown(orders []delta.Order) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Orders")
	if len(orders) == 0 {
		doc.PlainText("No order yet.")
		return doc.String()
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignLeft,
			md.AlignRight,
		},
		Header: []string{"Date", "Side", "Symbol", "Quantity", "Price", "Status", "Realized P/L"},
		Rows:   [][]string{},
	}
	for _, o := range orders {
		pnl := "-"
		if o.RealizedPnl != nil {
			pnl = delta.FormatSignedMoney(*o.RealizedPnl)
		}
		price := o.Price
		if o.ExecutionPrice != nil {
			price = *o.ExecutionPrice
		}
		table.Rows = append(table.Rows, []string{
			formatTime(o.CreatedAt),
			o.Side.String(),
			o.Symbol,
			o.Quantity.String(),
			delta.FormatMoney(price),
			o.Status,
			pnl,
		})
	}
	doc.Table(table)
	return doc.String()
}

// TransactionsMarkdown renders the wallet history.
func TransactionsMarkdown(txs []delta.WalletTransaction) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Wallet Transactions")
	if len(txs) == 0 {
		doc.PlainText("No transaction yet.")
		return doc.String()
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight},
		Header:    []string{"Date", "Type", "Amount"},
		Rows:      [][]string{},
	}
	for _, tx := range txs {
		amount := tx.Amount
		if tx.Kind == delta.Withdraw {
			amount = amount.Neg()
		}
		table.Rows = append(table.Rows, []string{formatTime(tx.CreatedAt), tx.Kind.String(), delta.FormatSignedMoney(amount)})
	}
	doc.Table(table)
	return doc.String()
}

// NotificationsMarkdown renders the notifications, unread ones in bold.
func NotificationsMarkdown(n []delta.Notification) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Notifications")
	if len(n) == 0 {
		doc.PlainText("No notification.")
		return doc.String()
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignRight, md.AlignLeft, md.AlignLeft},
		Header:    []string{"ID", "Date", "Message"},
		Rows:      [][]string{},
	}
	for _, x := range n {
		msg := x.Message
		if !x.Read {
			msg = md.Bold(msg)
		}
		table.Rows = append(table.Rows, []string{fmt.Sprint(x.ID), formatTime(x.CreatedAt), msg})
	}
	doc.Table(table)
	return doc.String()
}

// LeaderboardMarkdown renders the ranking.
func LeaderboardMarkdown(title string, entries []delta.LeaderboardEntry) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1(title)
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignRight, md.AlignLeft, md.AlignRight, md.AlignRight},
		Header:    []string{"Rank", "Trader", "Net Worth", "Gain / Loss"},
		Rows:      [][]string{},
	}
	for i, e := range entries {
		table.Rows = append(table.Rows, []string{
			fmt.Sprint(i + 1),
			e.Username,
			delta.FormatMoney(e.NetWorth),
			delta.FormatPercent(e.GainLossPercent),
		})
	}
	doc.Table(table)
	return doc.String()
}

// AchievementsMarkdown renders the badges, locked ones last.
func AchievementsMarkdown(a []delta.Achievement) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Achievements")
	var unlocked, locked []string
	for _, x := range a {
		if x.Unlocked {
			unlocked = append(unlocked, fmt.Sprintf("%s: %s", md.Bold(x.Name), x.Description))
		} else {
			locked = append(locked, fmt.Sprintf("%s: %s", x.Name, x.Description))
		}
	}
	if len(unlocked) > 0 {
		doc.H2("Unlocked")
		doc.BulletList(unlocked...)
	}
	if len(locked) > 0 {
		doc.H2("Locked")
		doc.BulletList(locked...)
	}
	return doc.String()
}
