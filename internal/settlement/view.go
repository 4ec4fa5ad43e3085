// Package settlement derives the read-side views of a team ledger: the
// month filter used for historical review, display balance lines and a
// suggested set of repayments that would settle everyone up.
package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/ledger"
	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/storage"
)

// BalanceLine is one participant's balance prepared for display.
type BalanceLine struct {
	ParticipantID string
	Label         string
	Removed       bool
	NetBalance    decimal.Decimal
	TotalPaid     decimal.Decimal
	TotalOwed     decimal.Decimal
}

// Transfer is a suggested repayment: From pays Amount to To.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// FilterByMonth returns the transactions dated within month (YYYY-MM),
// newest first. A blank month keeps every transaction.
// The input slice is not modified.
func FilterByMonth(txs []*models.Transaction, month string) ([]*models.Transaction, error) {
	match, err := storage.TransactionFilter{Month: month}.Matcher()
	if err != nil {
		return nil, &calculator.ValidationError{Field: "month", Reason: err.Error()}
	}

	out := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx != nil && match(tx) {
			out = append(out, tx)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders transactions by date, then creation time, both
// descending. Ties keep their input order.
func SortNewestFirst(txs []*models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt > b.CreatedAt
	})
}

// Months lists the distinct months (YYYY-MM) that have transactions,
// always including the month of now, newest first.
func Months(txs []*models.Transaction, now time.Time) []string {
	set := map[string]struct{}{
		now.UTC().Format(models.MonthLayout): {},
	}
	for _, tx := range txs {
		if tx == nil || tx.Date.IsZero() {
			continue
		}
		set[tx.Month()] = struct{}{}
	}

	months := make([]string, 0, len(set))
	for m := range set {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}

// BalanceLines labels every balance in the sheet. Removed participants
// are listed only while they still have history in the ledger.
func BalanceLines(sheet *calculator.BalanceSheet, roster *ledger.Roster) []BalanceLine {
	lines := make([]BalanceLine, 0, len(sheet.Balances))
	for _, b := range sheet.Balances {
		removed := !roster.IsActive(b.ParticipantID)
		if removed && b.TotalPaid.IsZero() && b.TotalOwed.IsZero() {
			continue
		}
		lines = append(lines, BalanceLine{
			ParticipantID: b.ParticipantID,
			Label:         roster.Label(b.ParticipantID),
			Removed:       removed,
			NetBalance:    b.NetBalance,
			TotalPaid:     b.TotalPaid,
			TotalOwed:     b.TotalOwed,
		})
	}
	return lines
}

// SuggestRepayments proposes transfers that bring every balance to zero.
//
// Algorithm:
//   - Split members into debtors (net < 0) and creditors (net > 0)
//   - Sort both by outstanding amount descending, then id
//   - Repeatedly match the current debtor with the current creditor for the
//     smaller of the two outstanding amounts
//
// The result is ordered by amount descending, then payer and payee id.
func SuggestRepayments(balances []calculator.MemberBalance) []Transfer {
	type party struct {
		id     string
		amount decimal.Decimal
	}

	var debtors, creditors []*party
	for _, b := range balances {
		switch {
		case b.NetBalance.IsNegative():
			debtors = append(debtors, &party{id: b.ParticipantID, amount: b.NetBalance.Neg()})
		case b.NetBalance.IsPositive():
			creditors = append(creditors, &party{id: b.ParticipantID, amount: b.NetBalance})
		}
	}

	byAmount := func(ps []*party) {
		sort.Slice(ps, func(i, j int) bool {
			if c := ps[i].amount.Cmp(ps[j].amount); c != 0 {
				return c > 0
			}
			return ps[i].id < ps[j].id
		})
	}
	byAmount(debtors)
	byAmount(creditors)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := debtors[i], creditors[j]

		amount := decimal.Min(debtor.amount, creditor.amount)
		if amount.IsPositive() {
			transfers = append(transfers, Transfer{From: debtor.id, To: creditor.id, Amount: amount})
		}

		debtor.amount = debtor.amount.Sub(amount)
		creditor.amount = creditor.amount.Sub(amount)
		if debtor.amount.IsZero() {
			i++
		}
		if creditor.amount.IsZero() {
			j++
		}
	}

	sort.SliceStable(transfers, func(a, b int) bool {
		ta, tb := transfers[a], transfers[b]
		if c := ta.Amount.Cmp(tb.Amount); c != 0 {
			return c > 0
		}
		if ta.From != tb.From {
			return ta.From < tb.From
		}
		return ta.To < tb.To
	})
	return transfers
}
