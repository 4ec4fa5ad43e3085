package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/money"
	"github.com/mmynk/teamtab/internal/storage"
)

const transactionColumns = "id, team_id, title, date, payer_id, total, is_repayment, created_by, created_at"

// CreateTransaction persists a transaction and its splits in one SQL
// transaction, bumping the team version.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, t.TeamID); err != nil {
		return err
	}

	var createdBy any
	if t.CreatedBy != "" {
		createdBy = t.CreatedBy
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TeamID, t.Title, models.FormatDate(t.Date), t.PayerID,
		money.Format(t.Total), t.IsRepayment, createdBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i := range t.Splits {
		split := &t.Splits[i]
		split.TransactionID = t.ID

		_, err = tx.ExecContext(ctx,
			"INSERT INTO splits (transaction_id, participant_id, amount, position) VALUES (?, ?, ?, ?)",
			t.ID, split.ParticipantID, money.Format(split.Amount), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID, including its splits.
func (s *SQLiteStore) GetTransaction(ctx context.Context, teamID, txID string) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND team_id = ?",
		txID, teamID,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("transaction", txID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT transaction_id, participant_id, amount FROM splits WHERE transaction_id = ? ORDER BY position",
		txID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	splits, err := scanSplits(rows)
	if err != nil {
		return nil, err
	}
	t.Splits = splits[t.ID]

	return t, nil
}

// ListTransactions retrieves a team's transactions and their splits,
// newest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, teamID string, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	start, end, hasMonth, err := filter.MonthRange()
	if err != nil {
		return nil, err
	}

	where := []string{"t.team_id = ?"}
	args := []any{teamID}
	if hasMonth {
		where = append(where, "t.date >= ?", "t.date < ?")
		args = append(args, models.FormatDate(start), models.FormatDate(end))
	}
	cond := strings.Join(where, " AND ")

	// Both reads share one snapshot.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT t.id, t.team_id, t.title, t.date, t.payer_id, t.total, t.is_repayment, t.created_by, t.created_at
		 FROM transactions t WHERE `+cond+`
		 ORDER BY t.date DESC, t.created_at DESC, t.rowid DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	if len(txs) == 0 {
		return txs, nil
	}

	splitRows, err := tx.QueryContext(ctx,
		`SELECT s.transaction_id, s.participant_id, s.amount
		 FROM splits s JOIN transactions t ON t.id = s.transaction_id
		 WHERE `+cond+`
		 ORDER BY s.transaction_id, s.position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer splitRows.Close()

	splits, err := scanSplits(splitRows)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		t.Splits = splits[t.ID]
	}

	return txs, nil
}

// DeleteTransaction removes a transaction and its splits.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, teamID, txID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM splits WHERE transaction_id IN
		 (SELECT id FROM transactions WHERE id = ? AND team_id = ?)`,
		txID, teamID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND team_id = ?", txID, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n == 0 {
		return nil
	}

	if err := bumpVersion(ctx, tx, teamID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var date string
	var createdBy sql.NullString
	err := row.Scan(&t.ID, &t.TeamID, &t.Title, &date, &t.PayerID, &t.Total,
		&t.IsRepayment, &createdBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Date, err = models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.CreatedBy = createdBy.String
	return t, nil
}

func scanSplits(rows *sql.Rows) (map[string][]models.Split, error) {
	splits := make(map[string][]models.Split)
	for rows.Next() {
		var split models.Split
		var amount decimal.Decimal
		if err := rows.Scan(&split.TransactionID, &split.ParticipantID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Amount = amount
		splits[split.TransactionID] = append(splits[split.TransactionID], split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}
