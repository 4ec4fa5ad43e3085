package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"golang.org/x/text/unicode/norm"

	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/models"
	"github.com/mmynk/teamtab/internal/notify"
	"github.com/mmynk/teamtab/internal/storage"
	"github.com/mmynk/teamtab/pkg/api"
	"github.com/mmynk/teamtab/pkg/api/apiconnect"
)

const maxNameLength = 100

// TeamService implements the Connect TeamService
type TeamService struct {
	apiconnect.UnimplementedTeamServiceHandler
	store  storage.Store
	events notify.Publisher
}

// NewTeamService creates a new TeamService with the given storage backend.
// events may be nil.
func NewTeamService(store storage.Store, events notify.Publisher) *TeamService {
	return &TeamService{store: store, events: events}
}

// normalizeName trims a display name and converts it to NFC.
func normalizeName(field, name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", &calculator.ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len([]rune(name)) > maxNameLength {
		return "", &calculator.ValidationError{Field: field, Reason: "is too long"}
	}
	return name, nil
}

// CreateTeam creates an empty team.
func (s *TeamService) CreateTeam(
	ctx context.Context,
	req *connect.Request[api.CreateTeamRequest],
) (*connect.Response[api.CreateTeamResponse], error) {
	slog.Info("CreateTeam request received", "name", req.Msg.Name)

	name, err := normalizeName("name", req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}

	team := &models.Team{Name: name}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		slog.Error("CreateTeam failed", "error", err)
		return nil, toConnectError(err)
	}
	publish(ctx, s.events, team.ID, notify.KindTeamCreated)

	return connect.NewResponse(&api.CreateTeamResponse{Team: teamToAPI(team)}), nil
}

// GetTeam returns the team and its full roster, removed members included.
func (s *TeamService) GetTeam(
	ctx context.Context,
	req *connect.Request[api.GetTeamRequest],
) (*connect.Response[api.GetTeamResponse], error) {
	team, err := s.store.GetTeam(ctx, req.Msg.TeamID)
	if err != nil {
		return nil, toConnectError(err)
	}
	participants, err := s.store.ListParticipants(ctx, team.ID, true)
	if err != nil {
		slog.Error("GetTeam failed", "team_id", team.ID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetTeamResponse{
		Team:         teamToAPI(team),
		Participants: participantsToAPI(participants),
	}), nil
}

// AddParticipant adds a named member to a team.
func (s *TeamService) AddParticipant(
	ctx context.Context,
	req *connect.Request[api.AddParticipantRequest],
) (*connect.Response[api.AddParticipantResponse], error) {
	slog.Info("AddParticipant request received", "team_id", req.Msg.TeamID, "name", req.Msg.Name)

	name, err := normalizeName("name", req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}

	p := &models.Participant{
		TeamID:    req.Msg.TeamID,
		Name:      name,
		AvatarURL: strings.TrimSpace(req.Msg.AvatarURL),
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		slog.Error("AddParticipant failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}
	publish(ctx, s.events, p.TeamID, notify.KindParticipantAdded)

	return connect.NewResponse(&api.AddParticipantResponse{Participant: participantToAPI(p)}), nil
}

// RemoveParticipant tombstones a member. Their history stays intact and
// they can no longer be used as payer or split participant.
func (s *TeamService) RemoveParticipant(
	ctx context.Context,
	req *connect.Request[api.RemoveParticipantRequest],
) (*connect.Response[api.RemoveParticipantResponse], error) {
	slog.Info("RemoveParticipant request received",
		"team_id", req.Msg.TeamID,
		"participant_id", req.Msg.ParticipantID,
	)

	if _, err := s.store.GetTeam(ctx, req.Msg.TeamID); err != nil {
		return nil, toConnectError(err)
	}
	if err := s.store.RemoveParticipant(ctx, req.Msg.TeamID, req.Msg.ParticipantID); err != nil {
		slog.Error("RemoveParticipant failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}
	publish(ctx, s.events, req.Msg.TeamID, notify.KindParticipantRemoved)

	return connect.NewResponse(&api.RemoveParticipantResponse{}), nil
}

// ListParticipants returns the team's members in team order.
func (s *TeamService) ListParticipants(
	ctx context.Context,
	req *connect.Request[api.ListParticipantsRequest],
) (*connect.Response[api.ListParticipantsResponse], error) {
	if _, err := s.store.GetTeam(ctx, req.Msg.TeamID); err != nil {
		return nil, toConnectError(err)
	}
	participants, err := s.store.ListParticipants(ctx, req.Msg.TeamID, req.Msg.IncludeRemoved)
	if err != nil {
		slog.Error("ListParticipants failed", "team_id", req.Msg.TeamID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.ListParticipantsResponse{Participants: participantsToAPI(participants)}), nil
}

// publish signals a change. A failed publish never fails the write.
func publish(ctx context.Context, events notify.Publisher, teamID string, kind notify.Kind) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, notify.Event{TeamID: teamID, Kind: kind}); err != nil {
		slog.Warn("Publish failed", "team_id", teamID, "kind", kind, "error", err)
	}
}
