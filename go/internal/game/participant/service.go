package participant

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/google/uuid"
)

const ServiceName = "quiz.v1.ParticipantService"

var SetScoreProcedure = rpcutil.Procedure(ServiceName, "SetScore")

var HostProcedures = []string{SetScoreProcedure}

// ParticipantApp defines what the service layer needs from the roster
type ParticipantApp interface {
	Join(ctx context.Context, req JoinRequest) (*JoinResult, error)
	Leave(ctx context.Context, participantID uuid.UUID) error
	List(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	SetScore(ctx context.Context, participantID uuid.UUID, score int) (*models.Participant, error)
}

type JoinSessionRequest struct {
	SessionID string  `json:"session_id" validate:"required,uuid"`
	Username  string  `json:"username" validate:"required,max=64"`
	GroupName *string `json:"group_name,omitempty" validate:"omitempty,max=64"`
}

type LeaveSessionRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
}

type ListParticipantsRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type SetScoreRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	Score         *int   `json:"score" validate:"required,gte=0"`
}

type ListParticipantsResponse struct {
	Participants []models.Participant `json:"participants"`
}

type Service struct {
	app ParticipantApp
}

func NewService(app ParticipantApp) *Service {
	return &Service{app: app}
}

func NewParticipantServiceHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	h := rpcutil.NewServiceHandler(ServiceName, opts...)
	rpcutil.Handle(h, "JoinSession", s.JoinSession)
	rpcutil.Handle(h, "LeaveSession", s.LeaveSession)
	rpcutil.Handle(h, "ListParticipants", s.ListParticipants)
	rpcutil.Handle(h, "SetScore", s.SetScore)
	return h.Path(), h
}

func (s *Service) JoinSession(ctx context.Context, req *JoinSessionRequest) (*JoinResult, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	return s.app.Join(ctx, JoinRequest{SessionID: sessionID, Username: req.Username, GroupName: req.GroupName})
}

func (s *Service) LeaveSession(ctx context.Context, req *LeaveSessionRequest) (*rpcutil.Empty, error) {
	id, err := rpcutil.ParseUUID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if err := s.app.Leave(ctx, id); err != nil {
		return nil, err
	}
	return &rpcutil.Empty{}, nil
}

func (s *Service) ListParticipants(ctx context.Context, req *ListParticipantsRequest) (*ListParticipantsResponse, error) {
	id, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	ps, err := s.app.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ListParticipantsResponse{Participants: ps}, nil
}

func (s *Service) SetScore(ctx context.Context, req *SetScoreRequest) (*models.Participant, error) {
	id, err := rpcutil.ParseUUID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, err
	}
	return s.app.SetScore(ctx, id, *req.Score)
}
