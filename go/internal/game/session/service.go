package session

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const ServiceName = "quiz.v1.SessionService"

var (
	OpenSessionProcedure     = rpcutil.Procedure(ServiceName, "OpenSession")
	CloseSessionProcedure    = rpcutil.Procedure(ServiceName, "CloseSession")
	StartSessionProcedure    = rpcutil.Procedure(ServiceName, "StartSession")
	StopSessionProcedure     = rpcutil.Procedure(ServiceName, "StopSession")
	RestartSessionProcedure  = rpcutil.Procedure(ServiceName, "RestartSession")
	AdvanceQuestionProcedure = rpcutil.Procedure(ServiceName, "AdvanceQuestion")
	StartQuestionProcedure   = rpcutil.Procedure(ServiceName, "StartQuestion")
	GetSessionProcedure      = rpcutil.Procedure(ServiceName, "GetSession")
)

// HostProcedures are the lifecycle procedures only the host may call.
var HostProcedures = []string{
	OpenSessionProcedure,
	CloseSessionProcedure,
	StartSessionProcedure,
	StopSessionProcedure,
	RestartSessionProcedure,
	AdvanceQuestionProcedure,
	StartQuestionProcedure,
}

// SessionApp defines what the service layer needs from the state machine
type SessionApp interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	OpenSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error)
	CloseSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error)
	StartSession(ctx context.Context, id uuid.UUID, duration time.Duration) (*TransitionResult, error)
	StopSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error)
	RestartSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error)
	AdvanceQuestion(ctx context.Context, id uuid.UUID) (*TransitionResult, error)
	StartQuestion(ctx context.Context, id uuid.UUID) (*TransitionResult, error)
}

type SessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type StartSessionRequest struct {
	SessionID           string `json:"session_id" validate:"required,uuid"`
	QuestionDurationSec int    `json:"question_duration_sec" validate:"gte=0,lte=3600"`
}

// Service exposes the state machine over connect.
type Service struct {
	app SessionApp
}

func NewService(app SessionApp) *Service {
	return &Service{app: app}
}

// NewSessionServiceHandler mounts every session procedure.
func NewSessionServiceHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	h := rpcutil.NewServiceHandler(ServiceName, opts...)
	rpcutil.Handle(h, "GetSession", s.GetSession)
	rpcutil.Handle(h, "OpenSession", s.lifecycle("open", s.app.OpenSession))
	rpcutil.Handle(h, "CloseSession", s.lifecycle("close", s.app.CloseSession))
	rpcutil.Handle(h, "StartSession", s.StartSession)
	rpcutil.Handle(h, "StopSession", s.lifecycle("stop", s.app.StopSession))
	rpcutil.Handle(h, "RestartSession", s.lifecycle("restart", s.app.RestartSession))
	rpcutil.Handle(h, "AdvanceQuestion", s.lifecycle("advance", s.app.AdvanceQuestion))
	rpcutil.Handle(h, "StartQuestion", s.lifecycle("start question", s.app.StartQuestion))
	return h.Path(), h
}

func (s *Service) GetSession(ctx context.Context, req *SessionRequest) (*models.Session, error) {
	id, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	return s.app.GetSession(ctx, id)
}

func (s *Service) StartSession(ctx context.Context, req *StartSessionRequest) (*TransitionResult, error) {
	id, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.app.StartSession(ctx, id, time.Duration(req.QuestionDurationSec)*time.Second)
	if err != nil {
		return nil, err
	}
	logTransition(ctx, "start", res)
	return res, nil
}

func (s *Service) lifecycle(name string, op func(context.Context, uuid.UUID) (*TransitionResult, error)) func(context.Context, *SessionRequest) (*TransitionResult, error) {
	return func(ctx context.Context, req *SessionRequest) (*TransitionResult, error) {
		id, err := rpcutil.ParseUUID("session_id", req.SessionID)
		if err != nil {
			return nil, err
		}
		res, err := op(ctx, id)
		if err != nil {
			return nil, err
		}
		logTransition(ctx, name, res)
		return res, nil
	}
}

func logTransition(ctx context.Context, name string, res *TransitionResult) {
	ev := log.Info().
		Str("session_id", res.Session.ID.String()).
		Str("transition", name).
		Str("status", string(res.Session.Status)).
		Int("question_index", res.Session.CurrentQuestionIndex)
	if host, ok := rpcutil.HostFromContext(ctx); ok {
		ev = ev.Str("host", host.Subject)
	}
	ev.Msg("session transition")
}
