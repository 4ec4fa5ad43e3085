package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/teamtab/internal/models"
)

// AddParticipant inserts a participant and bumps the team version.
func (s *SQLiteStore) AddParticipant(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	if participant.CreatedAt == 0 {
		participant.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, participant.TeamID); err != nil {
		return err
	}

	var avatar any
	if participant.AvatarURL != "" {
		avatar = participant.AvatarURL
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO participants (id, team_id, name, avatar_url, created_at) VALUES (?, ?, ?, ?, ?)",
		participant.ID, participant.TeamID, participant.Name, avatar, participant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListParticipants returns a team's participants in insertion order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, teamID string, includeRemoved bool) ([]*models.Participant, error) {
	query := `SELECT id, team_id, name, avatar_url, created_at, removed_at
		 FROM participants WHERE team_id = ?`
	if !includeRemoved {
		query += " AND removed_at IS NULL"
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		var avatar sql.NullString
		var removedAt sql.NullInt64
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &avatar, &p.CreatedAt, &removedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.AvatarURL = avatar.String
		p.RemovedAt = removedAt.Int64
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

// RemoveParticipant sets removed_at on an active participant. The team
// version is only bumped when a row actually changed.
func (s *SQLiteStore) RemoveParticipant(ctx context.Context, teamID, participantID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE participants SET removed_at = ? WHERE id = ? AND team_id = ? AND removed_at IS NULL",
		time.Now().Unix(), participantID, teamID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
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
