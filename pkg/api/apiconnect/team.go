package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/teamtab/pkg/api"
)

const (
	// TeamServiceName is the fully-qualified name of the TeamService service.
	TeamServiceName = "teamtab.v1.TeamService"
)

const (
	TeamServiceCreateTeamProcedure        = "/teamtab.v1.TeamService/CreateTeam"
	TeamServiceGetTeamProcedure           = "/teamtab.v1.TeamService/GetTeam"
	TeamServiceAddParticipantProcedure    = "/teamtab.v1.TeamService/AddParticipant"
	TeamServiceRemoveParticipantProcedure = "/teamtab.v1.TeamService/RemoveParticipant"
	TeamServiceListParticipantsProcedure  = "/teamtab.v1.TeamService/ListParticipants"
)

// TeamServiceClient is a client for the teamtab.v1.TeamService service.
type TeamServiceClient interface {
	CreateTeam(context.Context, *connect.Request[api.CreateTeamRequest]) (*connect.Response[api.CreateTeamResponse], error)
	GetTeam(context.Context, *connect.Request[api.GetTeamRequest]) (*connect.Response[api.GetTeamResponse], error)
	AddParticipant(context.Context, *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.AddParticipantResponse], error)
	RemoveParticipant(context.Context, *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.RemoveParticipantResponse], error)
	ListParticipants(context.Context, *connect.Request[api.ListParticipantsRequest]) (*connect.Response[api.ListParticipantsResponse], error)
}

// NewTeamServiceClient constructs a client for the teamtab.v1.TeamService
// service. baseURL is the server root, e.g. https://tab.example.com.
func NewTeamServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TeamServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &teamServiceClient{
		createTeam:        connect.NewClient[api.CreateTeamRequest, api.CreateTeamResponse](httpClient, baseURL+TeamServiceCreateTeamProcedure, opts...),
		getTeam:           connect.NewClient[api.GetTeamRequest, api.GetTeamResponse](httpClient, baseURL+TeamServiceGetTeamProcedure, opts...),
		addParticipant:    connect.NewClient[api.AddParticipantRequest, api.AddParticipantResponse](httpClient, baseURL+TeamServiceAddParticipantProcedure, opts...),
		removeParticipant: connect.NewClient[api.RemoveParticipantRequest, api.RemoveParticipantResponse](httpClient, baseURL+TeamServiceRemoveParticipantProcedure, opts...),
		listParticipants:  connect.NewClient[api.ListParticipantsRequest, api.ListParticipantsResponse](httpClient, baseURL+TeamServiceListParticipantsProcedure, opts...),
	}
}

type teamServiceClient struct {
	createTeam        *connect.Client[api.CreateTeamRequest, api.CreateTeamResponse]
	getTeam           *connect.Client[api.GetTeamRequest, api.GetTeamResponse]
	addParticipant    *connect.Client[api.AddParticipantRequest, api.AddParticipantResponse]
	removeParticipant *connect.Client[api.RemoveParticipantRequest, api.RemoveParticipantResponse]
	listParticipants  *connect.Client[api.ListParticipantsRequest, api.ListParticipantsResponse]
}

func (c *teamServiceClient) CreateTeam(ctx context.Context, req *connect.Request[api.CreateTeamRequest]) (*connect.Response[api.CreateTeamResponse], error) {
	return c.createTeam.CallUnary(ctx, req)
}

func (c *teamServiceClient) GetTeam(ctx context.Context, req *connect.Request[api.GetTeamRequest]) (*connect.Response[api.GetTeamResponse], error) {
	return c.getTeam.CallUnary(ctx, req)
}

func (c *teamServiceClient) AddParticipant(ctx context.Context, req *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.AddParticipantResponse], error) {
	return c.addParticipant.CallUnary(ctx, req)
}

func (c *teamServiceClient) RemoveParticipant(ctx context.Context, req *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.RemoveParticipantResponse], error) {
	return c.removeParticipant.CallUnary(ctx, req)
}

func (c *teamServiceClient) ListParticipants(ctx context.Context, req *connect.Request[api.ListParticipantsRequest]) (*connect.Response[api.ListParticipantsResponse], error) {
	return c.listParticipants.CallUnary(ctx, req)
}

// TeamServiceHandler is an implementation of the teamtab.v1.TeamService service.
type TeamServiceHandler interface {
	CreateTeam(context.Context, *connect.Request[api.CreateTeamRequest]) (*connect.Response[api.CreateTeamResponse], error)
	GetTeam(context.Context, *connect.Request[api.GetTeamRequest]) (*connect.Response[api.GetTeamResponse], error)
	AddParticipant(context.Context, *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.AddParticipantResponse], error)
	RemoveParticipant(context.Context, *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.RemoveParticipantResponse], error)
	ListParticipants(context.Context, *connect.Request[api.ListParticipantsRequest]) (*connect.Response[api.ListParticipantsResponse], error)
}

// NewTeamServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewTeamServiceHandler(svc TeamServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	createTeam := connect.NewUnaryHandler(TeamServiceCreateTeamProcedure, svc.CreateTeam, opts...)
	getTeam := connect.NewUnaryHandler(TeamServiceGetTeamProcedure, svc.GetTeam, opts...)
	addParticipant := connect.NewUnaryHandler(TeamServiceAddParticipantProcedure, svc.AddParticipant, opts...)
	removeParticipant := connect.NewUnaryHandler(TeamServiceRemoveParticipantProcedure, svc.RemoveParticipant, opts...)
	listParticipants := connect.NewUnaryHandler(TeamServiceListParticipantsProcedure, svc.ListParticipants, opts...)
	return "/" + TeamServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TeamServiceCreateTeamProcedure:
			createTeam.ServeHTTP(w, r)
		case TeamServiceGetTeamProcedure:
			getTeam.ServeHTTP(w, r)
		case TeamServiceAddParticipantProcedure:
			addParticipant.ServeHTTP(w, r)
		case TeamServiceRemoveParticipantProcedure:
			removeParticipant.ServeHTTP(w, r)
		case TeamServiceListParticipantsProcedure:
			listParticipants.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedTeamServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedTeamServiceHandler struct{}

func (UnimplementedTeamServiceHandler) CreateTeam(context.Context, *connect.Request[api.CreateTeamRequest]) (*connect.Response[api.CreateTeamResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.TeamService.CreateTeam is not implemented"))
}

func (UnimplementedTeamServiceHandler) GetTeam(context.Context, *connect.Request[api.GetTeamRequest]) (*connect.Response[api.GetTeamResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.TeamService.GetTeam is not implemented"))
}

func (UnimplementedTeamServiceHandler) AddParticipant(context.Context, *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.AddParticipantResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.TeamService.AddParticipant is not implemented"))
}

func (UnimplementedTeamServiceHandler) RemoveParticipant(context.Context, *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.RemoveParticipantResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.TeamService.RemoveParticipant is not implemented"))
}

func (UnimplementedTeamServiceHandler) ListParticipants(context.Context, *connect.Request[api.ListParticipantsRequest]) (*connect.Response[api.ListParticipantsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("teamtab.v1.TeamService.ListParticipants is not implemented"))
}
