package renderer

import (
	"bytes"
	"fmt"

	"github.com/etnz/delta"
	"github.com/etnz/delta/wallet"
	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"
)

// WizardMarkdown renders the current step of the wallet wizard.
func WizardMarkdown(s wallet.State, balance decimal.Decimal, known bool) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	title := "Deposit Funds"
	if s.Kind == delta.Withdraw {
		title = "Withdraw Funds"
	}
	doc.H1(title)

	current := "…"
	if known {
		current = delta.FormatMoney(balance)
	}
	switch s.Step {
	case wallet.StepAmount:
		paragraph(doc, fmt.Sprintf("Available balance: %s", current))
		if s.Amount.IsPositive() {
			paragraph(doc, fmt.Sprintf("Amount: %s", delta.FormatMoney(s.Amount)))
		}
	case wallet.StepPayment:
		paragraph(doc, fmt.Sprintf("You are about to deposit %s.", md.Bold(delta.FormatMoney(s.Amount))))
		paragraph(doc, "Confirm the payment, or go back to change the amount.")
	case wallet.StepProcessing:
		paragraph(doc, "Processing transaction…")
	case wallet.StepSuccess:
		paragraph(doc, md.Bold(successText(s)))
		if s.HasProjected {
			paragraph(doc, fmt.Sprintf("New balance: %s", delta.FormatMoney(s.Projected)))
		}
	}
	if s.Err != nil {
		paragraph(doc, fmt.Sprintf("Error: %v", s.Err))
	}
	return doc.String()
}

// paragraph adds text followed by a blank line.
func paragraph(doc *md.Markdown, text string) {
	doc.PlainText(text)
	doc.LF()
}

func successText(s wallet.State) string {
	if s.Message != "" {
		return s.Message
	}
	if s.Kind == delta.Withdraw {
		return "Withdrawal successful"
	}
	return "Deposit successful"
}

// JournalMarkdown renders the wallet journal, most recent first. Entries with
// no outcome yet are listed as pending.
func JournalMarkdown(entries []wallet.Entry) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Wallet Journal")
	if len(entries) == 0 {
		doc.PlainText("No wallet operation.")
		return doc.String()
	}

	pending := make(map[string]bool)
	for _, e := range wallet.Pending(entries) {
		pending[e.Ref] = true
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignLeft, md.AlignLeft},
		Header:    []string{"Time", "Operation", "Amount", "Outcome", "Message"},
		Rows:      [][]string{},
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		outcome := string(e.Outcome)
		if pending[e.Ref] {
			outcome = md.Bold("pending")
		}
		table.Rows = append(table.Rows, []string{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			e.Kind.String(),
			delta.FormatMoney(e.Amount),
			outcome,
			e.Message,
		})
	}
	doc.Table(table)
	return doc.String()
}
