// Package ledger assembles validated transactions from split calculator
// output and handles the repayment special case.
package ledger

import "github.com/mmynk/teamtab/internal/models"

// RemovedLabel is shown for ids that cannot be resolved at all.
const RemovedLabel = "Removed member"

// Roster is a team's participant set, in team order.
// Removed participants are kept so history can still be labelled.
type Roster struct {
	teamID       string
	participants []*models.Participant
	byID         map[string]*models.Participant
}

// NewRoster builds a roster from the team's participants, including removed
// ones. The slice order is preserved.
func NewRoster(teamID string, participants []*models.Participant) *Roster {
	r := &Roster{
		teamID: teamID,
		byID:   make(map[string]*models.Participant, len(participants)),
	}
	for _, p := range participants {
		if p == nil || (p.TeamID != "" && p.TeamID != teamID) {
			continue
		}
		r.participants = append(r.participants, p)
		r.byID[p.ID] = p
	}
	return r
}

// TeamID returns the team the roster belongs to.
func (r *Roster) TeamID() string {
	return r.teamID
}

// IsActive reports whether id is a current (not removed) member.
func (r *Roster) IsActive(id string) bool {
	p, ok := r.byID[id]
	return ok && !p.Removed()
}

// Lookup returns the participant, active or removed.
func (r *Roster) Lookup(id string) (*models.Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Label returns a display name for id. Removed participants keep their
// name with a marker; unknown ids get RemovedLabel.
func (r *Roster) Label(id string) string {
	p, ok := r.byID[id]
	switch {
	case !ok:
		return RemovedLabel
	case p.Removed():
		return p.Name + " (removed)"
	default:
		return p.Name
	}
}

// ActiveIDs returns the ids of current members in team order.
func (r *Roster) ActiveIDs() []string {
	ids := make([]string, 0, len(r.participants))
	for _, p := range r.participants {
		if !p.Removed() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// AllIDs returns every id, removed ones included, in team order.
func (r *Roster) AllIDs() []string {
	ids := make([]string, 0, len(r.participants))
	for _, p := range r.participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// Participants returns all participants in team order.
func (r *Roster) Participants() []*models.Participant {
	return r.participants
}
