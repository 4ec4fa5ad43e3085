// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface using lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/money"
	"github.com/mmynk/teamtab/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    avatar_url TEXT,
    created_at BIGINT NOT NULL,
    removed_at BIGINT
);

CREATE TABLE IF NOT EXISTS transactions (
    seq BIGSERIAL,
    id TEXT PRIMARY KEY,
    team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    date DATE NOT NULL,
    payer_id TEXT NOT NULL REFERENCES participants(id),
    total NUMERIC(14,2) NOT NULL CHECK (total > 0),
    is_repayment BOOLEAN NOT NULL DEFAULT FALSE,
    created_by TEXT,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS splits (
    transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL REFERENCES participants(id),
    amount NUMERIC(14,2) NOT NULL CHECK (amount >= 0),
    position INT NOT NULL,
    PRIMARY KEY (transaction_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_participants_team_id ON participants(team_id);
CREATE INDEX IF NOT EXISTS idx_transactions_team_date ON transactions(team_id, date);
`

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects to PostgreSQL and creates the schema if needed.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewWithDB(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection pool. The caller runs Migrate.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	if team.CreatedAt == 0 {
		team.CreatedAt = time.Now().Unix()
	}
	team.Version = 1

	const query = `INSERT INTO teams (id, name, version, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, team.ID, team.Name, team.Version, team.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	const query = `SELECT id, name, version, created_at FROM teams WHERE id = $1`

	team := &models.Team{}
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&team.ID, &team.Name, &team.Version, &team.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("team", teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

func (s *Store) TeamVersion(ctx context.Context, teamID string) (int64, error) {
	const query = `SELECT version FROM teams WHERE id = $1`

	var version int64
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.NotFound("team", teamID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get team version: %w", err)
	}
	return version, nil
}

func (s *Store) AddParticipant(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	if participant.CreatedAt == 0 {
		participant.CreatedAt = time.Now().Unix()
	}

	return s.inTx(ctx, func(dbTx *sql.Tx) error {
		if err := bumpVersion(ctx, dbTx, participant.TeamID); err != nil {
			return err
		}

		const query = `INSERT INTO participants (id, team_id, name, avatar_url, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`
		_, err := dbTx.ExecContext(ctx, query,
			participant.ID, participant.TeamID, participant.Name, participant.AvatarURL, participant.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
		return nil
	})
}

func (s *Store) ListParticipants(ctx context.Context, teamID string, includeRemoved bool) ([]*models.Participant, error) {
	query := `SELECT id, team_id, name, COALESCE(avatar_url, ''), created_at, COALESCE(removed_at, 0)
	FROM participants WHERE team_id = $1`
	if !includeRemoved {
		query += ` AND removed_at IS NULL`
	}
	query += ` ORDER BY created_at, seq`

	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.AvatarURL, &p.CreatedAt, &p.RemovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

func (s *Store) RemoveParticipant(ctx context.Context, teamID, participantID string) error {
	return s.inTx(ctx, func(dbTx *sql.Tx) error {
		const query = `UPDATE participants SET removed_at = $1
		WHERE id = $2 AND team_id = $3 AND removed_at IS NULL`
		res, err := dbTx.ExecContext(ctx, query, time.Now().Unix(), participantID, teamID)
		if err != nil {
			return fmt.Errorf("failed to remove participant: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		return bumpVersion(ctx, dbTx, teamID)
	})
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}

	return s.inTx(ctx, func(dbTx *sql.Tx) error {
		if err := bumpVersion(ctx, dbTx, t.TeamID); err != nil {
			return err
		}

		const query = `INSERT INTO transactions
		(id, team_id, title, date, payer_id, total, is_repayment, created_by, created_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, NULLIF($8, ''), $9)`
		_, err := dbTx.ExecContext(ctx, query,
			t.ID, t.TeamID, t.Title, models.FormatDate(t.Date), t.PayerID,
			money.Format(t.Total), t.IsRepayment, t.CreatedBy, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		const splitQuery = `INSERT INTO splits (transaction_id, participant_id, amount, position)
		VALUES ($1, $2, $3, $4)`
		for i := range t.Splits {
			split := &t.Splits[i]
			split.TransactionID = t.ID
			if _, err := dbTx.ExecContext(ctx, splitQuery, t.ID, split.ParticipantID, money.Format(split.Amount), i); err != nil {
				return fmt.Errorf("failed to insert split: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) GetTransaction(ctx context.Context, teamID, txID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = $1 AND t.team_id = $2`

	dbTx, err := s.db.BeginTx(ctx, snapshotRead)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	t, err := scanTransaction(dbTx.QueryRowContext(ctx, query, txID, teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("transaction", txID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	const splitQuery = `SELECT transaction_id, participant_id, amount FROM splits
	WHERE transaction_id = $1 ORDER BY position`
	rows, err := dbTx.QueryContext(ctx, splitQuery, txID)
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

func (s *Store) ListTransactions(ctx context.Context, teamID string, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	start, end, hasMonth, err := filter.MonthRange()
	if err != nil {
		return nil, err
	}

	cond := `t.team_id = $1`
	args := []any{teamID}
	if hasMonth {
		cond += ` AND t.date >= $2::date AND t.date < $3::date`
		args = append(args, models.FormatDate(start), models.FormatDate(end))
	}

	dbTx, err := s.db.BeginTx(ctx, snapshotRead)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	rows, err := dbTx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE `+cond+`
		ORDER BY t.date DESC, t.created_at DESC, t.seq DESC`,
		args...)
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

	splitRows, err := dbTx.QueryContext(ctx,
		`SELECT s.transaction_id, s.participant_id, s.amount
		FROM splits s JOIN transactions t ON t.id = s.transaction_id
		WHERE `+cond+` ORDER BY s.transaction_id, s.position`,
		args...)
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

func (s *Store) DeleteTransaction(ctx context.Context, teamID, txID string) error {
	return s.inTx(ctx, func(dbTx *sql.Tx) error {
		const query = `DELETE FROM transactions WHERE id = $1 AND team_id = $2`
		res, err := dbTx.ExecContext(ctx, query, txID, teamID)
		if err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		return bumpVersion(ctx, dbTx, teamID)
	})
}

// inTx runs fn in a SQL transaction, committing only when fn succeeds.
// snapshotRead runs multi-statement reads against a single snapshot.
var snapshotRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = fn(dbTx); err != nil {
		return err
	}
	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func bumpVersion(ctx context.Context, dbTx *sql.Tx, teamID string) error {
	res, err := dbTx.ExecContext(ctx, `UPDATE teams SET version = version + 1 WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to bump team version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to bump team version: %w", err)
	}
	if n == 0 {
		return storage.NotFound("team", teamID)
	}
	return nil
}
