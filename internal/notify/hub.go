// Package notify delivers "team changed" signals to interested readers.
//
// Delivery is level-triggered: an event says that something about the
// team changed, not what. Subscribers re-read whatever they need.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Kind names the write that caused an event.
type Kind string

const (
	KindTeamCreated        Kind = "team.created"
	KindParticipantAdded   Kind = "participant.added"
	KindParticipantRemoved Kind = "participant.removed"
	KindTransactionCreated Kind = "transaction.created"
	KindTransactionDeleted Kind = "transaction.deleted"
)

// Event signals that a team's ledger changed.
type Event struct {
	TeamID string    `json:"team_id"`
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`

	// Origin identifies the instance that produced the event so a bridge
	// can skip its own messages.
	Origin string `json:"origin,omitempty"`
}

// Publisher sends change events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub fans events out to in-process subscribers, per team.
// Callbacks run synchronously on the publishing goroutine and must not
// block.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]func(Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]func(Event))}
}

// Subscribe registers onChange for events of teamID. The returned function
// removes the subscription; calling it more than once is safe.
func (h *Hub) Subscribe(teamID string, onChange func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[teamID] == nil {
		h.subs[teamID] = make(map[uint64]func(Event))
	}
	h.subs[teamID][id] = onChange
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[teamID], id)
			if len(h.subs[teamID]) == 0 {
				delete(h.subs, teamID)
			}
		})
	}
}

// Publish delivers ev to every current subscriber of ev.TeamID.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	callbacks := make([]func(Event), 0, len(h.subs[ev.TeamID]))
	for _, fn := range h.subs[ev.TeamID] {
		callbacks = append(callbacks, fn)
	}
	h.mu.RUnlock()

	for _, fn := range callbacks {
		fn(ev)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for teamID.
func (h *Hub) Subscribers(teamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[teamID])
}

// Multi publishes to every publisher in order and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
