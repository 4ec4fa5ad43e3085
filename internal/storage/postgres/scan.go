package postgres

import (
	"database/sql"
	"fmt"

	"github.com/mmynk/teamtab/internal/models"
)

const transactionColumns = `t.id, t.team_id, t.title, to_char(t.date, 'YYYY-MM-DD'), t.payer_id, t.total,
	t.is_repayment, COALESCE(t.created_by, ''), t.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var date string
	err := row.Scan(&t.ID, &t.TeamID, &t.Title, &date, &t.PayerID, &t.Total,
		&t.IsRepayment, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.Date, err = models.ParseDate(date); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return t, nil
}

func scanSplits(rows *sql.Rows) (map[string][]models.Split, error) {
	splits := make(map[string][]models.Split)
	for rows.Next() {
		var split models.Split
		if err := rows.Scan(&split.TransactionID, &split.ParticipantID, &split.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits[split.TransactionID] = append(splits[split.TransactionID], split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}
