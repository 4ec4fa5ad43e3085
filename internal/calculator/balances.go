package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/money"
)

// MemberBalance represents the balance information for one participant.
type MemberBalance struct {
	ParticipantID string
	NetBalance    decimal.Decimal // Positive = owed money, Negative = owes money
	TotalPaid     decimal.Decimal // Total amount paid as payer
	TotalOwed     decimal.Decimal // Total amount allocated to this participant
}

// BalanceSheet is the result of folding a team's transactions.
type BalanceSheet struct {
	// Balances lists every known participant in the supplied order,
	// followed by ids that only appear in history, sorted.
	Balances []MemberBalance

	// Violations lists stored transactions whose splits disagree with
	// their total, sorted by transaction ID.
	Violations []ConsistencyViolation
}

// Get returns the balance of one participant.
func (s *BalanceSheet) Get(participantID string) (MemberBalance, bool) {
	for _, b := range s.Balances {
		if b.ParticipantID == participantID {
			return b, true
		}
	}
	return MemberBalance{}, false
}

// Net returns the participant's net balance, zero if unknown.
func (s *BalanceSheet) Net(participantID string) decimal.Decimal {
	b, _ := s.Get(participantID)
	return b.NetBalance
}

// Sum adds up every net balance. It is zero for any transaction set.
func (s *BalanceSheet) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range s.Balances {
		sum = sum.Add(b.NetBalance)
	}
	return sum
}

// CalculateBalances computes net balances across a team's transactions.
//
// Algorithm:
//   - Every known participant starts at zero
//   - For each transaction: the payer paid +total, each split participant
//     owes their split amount
//   - Whatever the splits leave unallocated (total - sum(splits)) is owed
//     by the payer, so a self-paid expense nets to zero and legacy rows
//     whose splits disagree with the total count the splits as they are
//   - net_balance = total_paid - total_owed
//
// A legacy row whose splits fall short of its total therefore credits its
// payer only for the split sum.
//
// The fold is order-independent and never fails. Payers and split
// participants missing from participantIDs still get an entry.
func CalculateBalances(participantIDs []string, txs []*models.Transaction) *BalanceSheet {
	balances := make(map[string]*MemberBalance, len(participantIDs))
	var order []string

	entry := func(id string) *MemberBalance {
		if b, ok := balances[id]; ok {
			return b
		}
		b := &MemberBalance{ParticipantID: id}
		balances[id] = b
		order = append(order, id)
		return b
	}

	for _, id := range participantIDs {
		entry(id)
	}
	known := len(order)

	sheet := &BalanceSheet{}
	for _, tx := range txs {
		if tx == nil || tx.PayerID == "" {
			continue
		}

		payer := entry(tx.PayerID)
		payer.TotalPaid = payer.TotalPaid.Add(tx.Total)

		splitSum := decimal.Zero
		for _, s := range tx.Splits {
			p := entry(s.ParticipantID)
			p.TotalOwed = p.TotalOwed.Add(s.Amount)
			splitSum = splitSum.Add(s.Amount)
		}

		if unallocated := tx.Total.Sub(splitSum); !unallocated.IsZero() {
			payer.TotalOwed = payer.TotalOwed.Add(unallocated)
		}

		if len(tx.Splits) > 0 && !money.Equal(tx.Total, splitSum) {
			sheet.Violations = append(sheet.Violations, ConsistencyViolation{
				TransactionID: tx.ID,
				Total:         tx.Total,
				SplitSum:      splitSum,
			})
		}
	}

	// Ids only found in history are appended in sorted order so the
	// result does not depend on transaction order.
	extra := order[known:]
	sort.Strings(extra)

	sheet.Balances = make([]MemberBalance, 0, len(order))
	for _, id := range order {
		b := balances[id]
		b.NetBalance = b.TotalPaid.Sub(b.TotalOwed)
		sheet.Balances = append(sheet.Balances, *b)
	}

	sort.Slice(sheet.Violations, func(i, j int) bool {
		return sheet.Violations[i].TransactionID < sheet.Violations[j].TransactionID
	})

	return sheet
}
