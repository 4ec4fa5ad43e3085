// Package memory provides an in-memory implementation of storage.Store.
// It is used for development and tests; nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/settlement"
	"github.com/mmynk/teamtab/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps every team in maps guarded by one mutex.
// Values are copied on the way in and out so callers never share state
// with the store.
type Store struct {
	mu           sync.RWMutex
	teams        map[string]*models.Team
	participants map[string][]*models.Participant // by team, insertion order
	transactions map[string][]*models.Transaction // by team, insertion order
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		teams:        make(map[string]*models.Team),
		participants: make(map[string][]*models.Participant),
		transactions: make(map[string][]*models.Transaction),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateTeam(_ context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	if team.CreatedAt == 0 {
		team.CreatedAt = time.Now().Unix()
	}
	team.Version = 1

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *team
	s.teams[team.ID] = &stored
	return nil
}

func (s *Store) GetTeam(_ context.Context, teamID string) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, ok := s.teams[teamID]
	if !ok {
		return nil, storage.NotFound("team", teamID)
	}
	out := *team
	return &out, nil
}

func (s *Store) TeamVersion(_ context.Context, teamID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, ok := s.teams[teamID]
	if !ok {
		return 0, storage.NotFound("team", teamID)
	}
	return team.Version, nil
}

func (s *Store) AddParticipant(_ context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	if participant.CreatedAt == 0 {
		participant.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams[participant.TeamID]
	if !ok {
		return storage.NotFound("team", participant.TeamID)
	}

	stored := *participant
	s.participants[team.ID] = append(s.participants[team.ID], &stored)
	team.Version++
	return nil
}

func (s *Store) ListParticipants(_ context.Context, teamID string, includeRemoved bool) ([]*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Participant
	for _, p := range s.participants[teamID] {
		if p.Removed() && !includeRemoved {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) RemoveParticipant(_ context.Context, teamID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants[teamID] {
		if p.ID != participantID || p.Removed() {
			continue
		}
		p.RemovedAt = time.Now().Unix()
		s.teams[teamID].Version++
		return nil
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().Unix()
	}
	for i := range tx.Splits {
		tx.Splits[i].TransactionID = tx.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams[tx.TeamID]
	if !ok {
		return storage.NotFound("team", tx.TeamID)
	}

	s.transactions[team.ID] = append(s.transactions[team.ID], copyTransaction(tx))
	team.Version++
	return nil
}

func (s *Store) GetTransaction(_ context.Context, teamID, txID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions[teamID] {
		if tx.ID == txID {
			return copyTransaction(tx), nil
		}
	}
	return nil, storage.NotFound("transaction", txID)
}

func (s *Store) ListTransactions(_ context.Context, teamID string, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	match, err := filter.Matcher()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	stored := s.transactions[teamID]
	out := make([]*models.Transaction, 0, len(stored))
	// Walk newest-inserted first so the stable sort keeps insertion order
	// descending within equal (date, created_at).
	for i := len(stored) - 1; i >= 0; i-- {
		tx := stored[i]
		if !match(tx) {
			continue
		}
		out = append(out, copyTransaction(tx))
	}
	s.mu.RUnlock()

	settlement.SortNewestFirst(out)
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, teamID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.transactions[teamID]
	for i, tx := range txs {
		if tx.ID != txID {
			continue
		}
		s.transactions[teamID] = append(txs[:i:i], txs[i+1:]...)
		s.teams[teamID].Version++
		return nil
	}
	return nil
}

func copyTransaction(tx *models.Transaction) *models.Transaction {
	cp := *tx
	cp.Splits = append([]models.Split(nil), tx.Splits...)
	return &cp
}
