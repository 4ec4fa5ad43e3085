package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/money"
)

// ExpenseInput carries everything needed to record an ordinary expense.
type ExpenseInput struct {
	TeamID  string
	Title   string
	Date    time.Time
	PayerID string

	// Total is authoritative: either entered by the user or the split
	// calculator's derived sum.
	Total decimal.Decimal

	// Splits is the validated participant -> amount mapping. It may be
	// empty for an expense the payer bore alone.
	Splits map[string]decimal.Decimal

	CreatedBy string
}

// RepaymentInput records a direct cash transfer from payor to payee.
type RepaymentInput struct {
	TeamID  string
	PayorID string
	PayeeID string
	Amount  decimal.Decimal
	Date    time.Time

	// Title is optional; a default naming both parties is used when blank.
	Title string

	CreatedBy string
}

// BuildExpense validates an expense and assembles the transaction with its
// splits in roster order. Zero-amount splits are pruned.
func BuildExpense(in ExpenseInput, roster *Roster) (*models.Transaction, error) {
	if in.TeamID != "" && in.TeamID != roster.TeamID() {
		return nil, &calculator.ValidationError{Field: "team_id", Reason: "does not match the participant roster"}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &calculator.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if in.Date.IsZero() {
		return nil, &calculator.ValidationError{Field: "date", Reason: "is required"}
	}
	if in.PayerID == "" {
		return nil, &calculator.ValidationError{Field: "payer_id", Reason: "is required"}
	}
	if !roster.IsActive(in.PayerID) {
		return nil, &calculator.ReferenceError{Field: "payer_id", ParticipantID: in.PayerID}
	}
	if !in.Total.IsPositive() {
		return nil, &calculator.ValidationError{Field: "total", Reason: "must be greater than zero"}
	}
	if err := money.Check(in.Total); err != nil {
		return nil, &calculator.ValidationError{Field: "total", Reason: err.Error()}
	}

	sum := decimal.Zero
	for id, amount := range in.Splits {
		if !roster.IsActive(id) {
			return nil, &calculator.ReferenceError{Field: "splits", ParticipantID: id}
		}
		if amount.IsNegative() {
			return nil, &calculator.ValidationError{
				Field:  "splits",
				Reason: fmt.Sprintf("amount for %s must not be negative", id),
			}
		}
		if err := money.Check(amount); err != nil {
			return nil, &calculator.ValidationError{
				Field:  "splits",
				Reason: fmt.Sprintf("amount for %s %v", id, err),
			}
		}
		sum = sum.Add(amount)
	}
	if len(in.Splits) > 0 && !money.Equal(sum, in.Total) {
		return nil, &calculator.MismatchError{Total: in.Total, Sum: sum}
	}

	tx := &models.Transaction{
		TeamID:    roster.TeamID(),
		Title:     title,
		Date:      dateOnly(in.Date),
		PayerID:   in.PayerID,
		Total:     in.Total,
		CreatedBy: in.CreatedBy,
	}
	for _, id := range roster.ActiveIDs() {
		amount, ok := in.Splits[id]
		if !ok || amount.IsZero() {
			continue
		}
		tx.Splits = append(tx.Splits, models.Split{ParticipantID: id, Amount: amount})
	}

	return tx, nil
}

// BuildRepayment assembles a repayment: the payor is the payer and the
// payee is the single split participant. Folding it into balances raises
// the payor's balance and lowers the payee's by the same amount.
func BuildRepayment(in RepaymentInput, roster *Roster) (*models.Transaction, error) {
	if in.PayorID == "" {
		return nil, &calculator.ValidationError{Field: "payor_id", Reason: "is required"}
	}
	if in.PayeeID == "" {
		return nil, &calculator.ValidationError{Field: "payee_id", Reason: "is required"}
	}
	if in.PayorID == in.PayeeID {
		return nil, &calculator.ValidationError{Field: "payee_id", Reason: "payor and payee must be different participants"}
	}
	if !roster.IsActive(in.PayorID) {
		return nil, &calculator.ReferenceError{Field: "payor_id", ParticipantID: in.PayorID}
	}
	if !roster.IsActive(in.PayeeID) {
		return nil, &calculator.ReferenceError{Field: "payee_id", ParticipantID: in.PayeeID}
	}
	if !in.Amount.IsPositive() {
		return nil, &calculator.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if err := money.Check(in.Amount); err != nil {
		return nil, &calculator.ValidationError{Field: "amount", Reason: err.Error()}
	}
	if in.Date.IsZero() {
		return nil, &calculator.ValidationError{Field: "date", Reason: "is required"}
	}
	if in.TeamID != "" && in.TeamID != roster.TeamID() {
		return nil, &calculator.ValidationError{Field: "team_id", Reason: "does not match the participant roster"}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = RepaymentTitle(roster.Label(in.PayorID), roster.Label(in.PayeeID))
	}

	return &models.Transaction{
		TeamID:      roster.TeamID(),
		Title:       title,
		Date:        dateOnly(in.Date),
		PayerID:     in.PayorID,
		Total:       in.Amount,
		IsRepayment: true,
		Splits:      []models.Split{{ParticipantID: in.PayeeID, Amount: in.Amount}},
		CreatedBy:   in.CreatedBy,
	}, nil
}

// RepaymentTitle is the default title of a repayment.
func RepaymentTitle(payor, payee string) string {
	return fmt.Sprintf("Repayment: %s → %s", payor, payee)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
