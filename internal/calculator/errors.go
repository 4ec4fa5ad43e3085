package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/money"
)

// ValidationError reports input that cannot become a transaction.
// It is always recoverable by correcting the input and is never persisted.
type ValidationError struct {
	// Field names the offending input (e.g., "title", "total", "splits").
	Field string
	// Reason is a short human-readable explanation.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ReferenceError reports a payer or split participant that is not an
// active member of the team. It unwraps to a *ValidationError.
type ReferenceError struct {
	Field         string
	ParticipantID string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s: participant %q is not in the team", e.Field, e.ParticipantID)
}

func (e *ReferenceError) Unwrap() error {
	return &ValidationError{Field: e.Field, Reason: "unknown participant"}
}

// MismatchError reports split amounts that do not add up to the total.
// Callers should show Difference to the user rather than fail hard.
// It unwraps to a *ValidationError.
type MismatchError struct {
	Total decimal.Decimal
	Sum   decimal.Decimal
}

// Difference is the amount still to be allocated (negative when
// over-allocated).
func (e *MismatchError) Difference() decimal.Decimal {
	return e.Total.Sub(e.Sum)
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("splits: sum %s does not match total %s (difference %s)",
		money.Format(e.Sum), money.Format(e.Total), money.Format(e.Difference()))
}

func (e *MismatchError) Unwrap() error {
	return &ValidationError{Field: "splits", Reason: "balance mismatch"}
}

// IsValidation reports whether err is (or wraps) a *ValidationError,
// including reference and mismatch errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConsistencyViolation describes a stored transaction whose splits do not
// add up to its total. It is discovered at read time and never fails
// aggregation.
type ConsistencyViolation struct {
	TransactionID string
	Total         decimal.Decimal
	SplitSum      decimal.Decimal
}

// Difference is Total minus SplitSum.
func (v ConsistencyViolation) Difference() decimal.Decimal {
	return v.Total.Sub(v.SplitSum)
}

func (v ConsistencyViolation) String() string {
	return fmt.Sprintf("transaction %s: splits sum to %s but total is %s",
		v.TransactionID, money.Format(v.SplitSum), money.Format(v.Total))
}

// Diagnostics receives consistency violations found while aggregating.
type Diagnostics interface {
	ReportViolation(teamID string, v ConsistencyViolation)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
