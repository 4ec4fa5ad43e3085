package api

// Team is the wire form of a team.
type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int64  `json:"version"`
	CreatedAt int64  `json:"created_at"`
}

// Participant is the wire form of a team member.
type Participant struct {
	ID        string `json:"id"`
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
	RemovedAt int64  `json:"removed_at,omitempty"`
	Removed   bool   `json:"removed,omitempty"`
}

type CreateTeamRequest struct {
	Name string `json:"name"`
}

type CreateTeamResponse struct {
	Team *Team `json:"team"`
}

type GetTeamRequest struct {
	TeamID string `json:"team_id"`
}

type GetTeamResponse struct {
	Team         *Team          `json:"team"`
	Participants []*Participant `json:"participants"`
}

type AddParticipantRequest struct {
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type AddParticipantResponse struct {
	Participant *Participant `json:"participant"`
}

type RemoveParticipantRequest struct {
	TeamID        string `json:"team_id"`
	ParticipantID string `json:"participant_id"`
}

type RemoveParticipantResponse struct{}

type ListParticipantsRequest struct {
	TeamID         string `json:"team_id"`
	IncludeRemoved bool   `json:"include_removed,omitempty"`
}

type ListParticipantsResponse struct {
	Participants []*Participant `json:"participants"`
}
