// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/teamtab/internal/models"
)

// ErrNotFound is returned when a team, participant or transaction does not
// exist within the requested team.
var ErrNotFound = errors.New("not found")

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	// Month restricts results to one calendar month (YYYY-MM).
	// Blank means every month.
	Month string
}

// MonthRange returns the [start, end) date range of the filter's month.
// ok is false when the filter has no month.
func (f TransactionFilter) MonthRange() (start, end time.Time, ok bool, err error) {
	if f.Month == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	start, err = models.ParseMonth(f.Month)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return start, start.AddDate(0, 1, 0), true, nil
}

// Matcher returns the predicate selecting the transactions within the
// filter's month. A filter without a month matches every transaction.
func (f TransactionFilter) Matcher() (func(*models.Transaction) bool, error) {
	start, end, ok, err := f.MonthRange()
	if err != nil {
		return nil, err
	}
	return func(tx *models.Transaction) bool {
		return !ok || (!tx.Date.Before(start) && tx.Date.Before(end))
	}, nil
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// in-memory) without changing the service layer.
//
// Every write to a team's participants or transactions bumps the team's
// Version in the same atomic step.
type Store interface {
	// CreateTeam persists a new team.
	// The team.ID, Version and CreatedAt fields will be populated by the store.
	CreateTeam(ctx context.Context, team *models.Team) error

	// GetTeam retrieves a team by its ID.
	// Returns ErrNotFound if the team does not exist.
	GetTeam(ctx context.Context, teamID string) (*models.Team, error)

	// TeamVersion returns the team's current version.
	// Returns ErrNotFound if the team does not exist.
	TeamVersion(ctx context.Context, teamID string) (int64, error)

	// AddParticipant persists a new participant in participant.TeamID.
	// The participant.ID and CreatedAt fields will be populated by the store.
	// Returns ErrNotFound if the team does not exist.
	AddParticipant(ctx context.Context, participant *models.Participant) error

	// ListParticipants returns the team's participants in the order they
	// were added. Removed participants are included only when asked for.
	ListParticipants(ctx context.Context, teamID string, includeRemoved bool) ([]*models.Participant, error)

	// RemoveParticipant tombstones a participant. Removing a missing or
	// already removed participant is a no-op.
	RemoveParticipant(ctx context.Context, teamID, participantID string) error

	// CreateTransaction persists a transaction together with its splits.
	// The tx.ID, CreatedAt and split TransactionID fields will be populated
	// by the store. Returns ErrNotFound if the team does not exist.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction retrieves one transaction with its splits.
	// Returns ErrNotFound if it does not exist in the team.
	GetTransaction(ctx context.Context, teamID, txID string) (*models.Transaction, error)

	// ListTransactions returns the team's transactions with their splits,
	// newest first (date, then creation time).
	ListTransactions(ctx context.Context, teamID string, filter TransactionFilter) ([]*models.Transaction, error)

	// DeleteTransaction removes a transaction and its splits atomically.
	// Deleting a missing transaction is a no-op.
	DeleteTransaction(ctx context.Context, teamID, txID string) error

	// Close releases any resources held by the store.
	Close() error
}

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
