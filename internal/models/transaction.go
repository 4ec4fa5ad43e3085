package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the wire and storage format of a transaction date.
	DateLayout = "2006-01-02"

	// MonthLayout is the format of a calendar month filter.
	MonthLayout = "2006-01"
)

// Transaction is one recorded monetary event: an ordinary expense or a
// repayment. Transactions are immutable once created; they can only be
// deleted as a whole, together with their splits.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// TeamID is the team this transaction belongs to.
	TeamID string

	// Title is the human-readable description (e.g., "Groceries").
	Title string

	// Date is the calendar date of the event (UTC midnight, no time part).
	Date time.Time

	// PayerID is the participant who paid.
	// For a repayment this is the payor (the one handing over money).
	PayerID string

	// Total is the amount paid. Always positive.
	Total decimal.Decimal

	// IsRepayment distinguishes a direct cash transfer from an expense.
	// A repayment has exactly one split: the payee.
	IsRepayment bool

	// Splits divide Total among participants. Empty for an expense the
	// payer bore alone.
	Splits []Split

	// CreatedBy is the authenticated subject that recorded the transaction.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the transaction was recorded.
	CreatedAt int64
}

// Split allocates part of a transaction's cost onto one participant.
type Split struct {
	TransactionID string
	ParticipantID string
	Amount        decimal.Decimal
}

// SplitSum returns the sum of all split amounts.
func (t *Transaction) SplitSum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range t.Splits {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// SplitFor returns the amount allocated to the participant, if any.
func (t *Transaction) SplitFor(participantID string) (decimal.Decimal, bool) {
	for _, s := range t.Splits {
		if s.ParticipantID == participantID {
			return s.Amount, true
		}
	}
	return decimal.Zero, false
}

// Month returns the transaction's calendar month as YYYY-MM.
func (t *Transaction) Month() string {
	return t.Date.Format(MonthLayout)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
// The zero time renders as an empty string.
func FormatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// ParseMonth parses a YYYY-MM month and returns the first day of that month.
func ParseMonth(s string) (time.Time, error) {
	m, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return m, nil
}
