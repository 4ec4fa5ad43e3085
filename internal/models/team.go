package models

// Team is the tenant boundary. It owns its participants and transactions.
type Team struct {
	// ID is the unique identifier for the team (UUID format).
	ID string

	// Name is the display name of the team (e.g., "Roommates", "Ski Trip").
	Name string

	// Version is bumped by the store on every write to the team's
	// participants or transactions. Derived data (balances) can be cached
	// keyed by (ID, Version).
	Version int64

	// CreatedAt is the Unix timestamp when the team was created.
	CreatedAt int64
}

// Participant is a named entity belonging to exactly one team.
// It is not necessarily tied to an authenticated user.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	ID string

	// TeamID is the team this participant belongs to.
	TeamID string

	// Name is the display name. Never empty.
	Name string

	// AvatarURL is an optional reference to an avatar image.
	AvatarURL string

	// CreatedAt is the Unix timestamp when the participant was added.
	// Participants are listed in CreatedAt order, which is also the stable
	// order used for even-split remainder allocation.
	CreatedAt int64

	// RemovedAt is the Unix timestamp of removal, or 0 while active.
	// Removed participants stay resolvable for historical transactions.
	RemovedAt int64
}

// Removed reports whether the participant has been removed from the team.
func (p *Participant) Removed() bool {
	return p.RemovedAt != 0
}
