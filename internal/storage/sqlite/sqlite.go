// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys and the busy timeout are per connection, so they go in
	// the DSN rather than a one-off PRAGMA.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTeam persists a new team to the database.
func (s *SQLiteStore) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	if team.CreatedAt == 0 {
		team.CreatedAt = time.Now().Unix()
	}
	team.Version = 1

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO teams (id, name, version, created_at) VALUES (?, ?, ?, ?)",
		team.ID, team.Name, team.Version, team.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

// GetTeam retrieves a team by ID.
func (s *SQLiteStore) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	team := &models.Team{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, version, created_at FROM teams WHERE id = ?",
		teamID,
	).Scan(&team.ID, &team.Name, &team.Version, &team.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("team", teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

// TeamVersion returns the current version of a team.
func (s *SQLiteStore) TeamVersion(ctx context.Context, teamID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM teams WHERE id = ?", teamID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.NotFound("team", teamID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get team version: %w", err)
	}
	return version, nil
}

// bumpVersion increments the team version inside tx.
// It doubles as the existence check for the team.
func bumpVersion(ctx context.Context, tx *sql.Tx, teamID string) error {
	res, err := tx.ExecContext(ctx, "UPDATE teams SET version = version + 1 WHERE id = ?", teamID)
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
