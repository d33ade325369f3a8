package queue

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const ServiceName = "quiz.v1.QueueService"

var (
	RequestTurnProcedure     = rpcutil.Procedure(ServiceName, "RequestTurn")
	SubmitAnswerProcedure    = rpcutil.Procedure(ServiceName, "SubmitAnswer")
	EvaluateAnswerProcedure  = rpcutil.Procedure(ServiceName, "EvaluateAnswer")
	SkipTurnProcedure        = rpcutil.Procedure(ServiceName, "SkipTurn")
	SkipParticipantProcedure = rpcutil.Procedure(ServiceName, "SkipParticipant")
	GetQueueProcedure        = rpcutil.Procedure(ServiceName, "GetQueue")
	ListAnswersProcedure     = rpcutil.Procedure(ServiceName, "ListAnswers")
)

var HostProcedures = []string{EvaluateAnswerProcedure, SkipParticipantProcedure, ListAnswersProcedure}

// QueueApp defines what the service layer needs from the queue coordinator
type QueueApp interface {
	RequestTurn(ctx context.Context, participantID, sessionID uuid.UUID) (*TurnResult, error)
	SubmitAnswer(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	EvaluateAnswer(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error)
	SkipTurn(ctx context.Context, participantID, questionID uuid.UUID) error
	SkipParticipant(ctx context.Context, participantID, questionID uuid.UUID) error
	GetQueue(ctx context.Context, sessionID uuid.UUID, questionID *uuid.UUID) (*QueueSnapshot, error)
	ListAnswers(ctx context.Context, f store.AnswerFilter) ([]models.AnswerHistoryItem, error)
}

type RequestTurnRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	SessionID     string `json:"session_id" validate:"required,uuid"`
}

type SubmitAnswerRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	QuestionID    string `json:"question_id" validate:"required,uuid"`
	OptionID      string `json:"option_id,omitempty" validate:"omitempty,uuid"`
}

type EvaluateAnswerRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	QuestionID    string `json:"question_id" validate:"required,uuid"`
	IsCorrect     *bool  `json:"is_correct" validate:"required"`
}

type SkipRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
	QuestionID    string `json:"question_id" validate:"required,uuid"`
}

type GetQueueRequest struct {
	SessionID  string `json:"session_id" validate:"required,uuid"`
	QuestionID string `json:"question_id,omitempty" validate:"omitempty,uuid"`
}

type ListAnswersRequest struct {
	SessionID     string `json:"session_id,omitempty" validate:"omitempty,uuid"`
	ParticipantID string `json:"participant_id,omitempty" validate:"omitempty,uuid"`
}

type ListAnswersResponse struct {
	Total   int                        `json:"total"`
	Answers []models.AnswerHistoryItem `json:"answers"`
}

type Service struct {
	app QueueApp
}

func NewService(app QueueApp) *Service {
	return &Service{app: app}
}

func NewQueueServiceHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	h := rpcutil.NewServiceHandler(ServiceName, opts...)
	rpcutil.Handle(h, "RequestTurn", s.RequestTurn)
	rpcutil.Handle(h, "SubmitAnswer", s.SubmitAnswer)
	rpcutil.Handle(h, "EvaluateAnswer", s.EvaluateAnswer)
	rpcutil.Handle(h, "SkipTurn", s.SkipTurn)
	rpcutil.Handle(h, "SkipParticipant", s.SkipParticipant)
	rpcutil.Handle(h, "GetQueue", s.GetQueue)
	rpcutil.Handle(h, "ListAnswers", s.ListAnswers)
	return h.Path(), h
}

func (s *Service) RequestTurn(ctx context.Context, req *RequestTurnRequest) (*TurnResult, error) {
	participantID, err := rpcutil.ParseUUID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, err
	}
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	return s.app.RequestTurn(ctx, participantID, sessionID)
}

func (s *Service) SubmitAnswer(ctx context.Context, req *SubmitAnswerRequest) (*SubmitResult, error) {
	participantID, questionID, err := parsePair(req.ParticipantID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	optionID, err := rpcutil.ParseOptionalUUID("option_id", req.OptionID)
	if err != nil {
		return nil, err
	}
	return s.app.SubmitAnswer(ctx, SubmitRequest{ParticipantID: participantID, QuestionID: questionID, OptionID: optionID})
}

func (s *Service) EvaluateAnswer(ctx context.Context, req *EvaluateAnswerRequest) (*EvaluateResult, error) {
	participantID, questionID, err := parsePair(req.ParticipantID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	res, err := s.app.EvaluateAnswer(ctx, EvaluateRequest{
		ParticipantID: participantID,
		QuestionID:    questionID,
		IsCorrect:     *req.IsCorrect,
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("participant_id", participantID.String()).
		Str("question_id", questionID.String()).
		Bool("is_correct", *req.IsCorrect).
		Msg("answer evaluated")
	return res, nil
}

func (s *Service) SkipTurn(ctx context.Context, req *SkipRequest) (*rpcutil.Empty, error) {
	participantID, questionID, err := parsePair(req.ParticipantID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if err := s.app.SkipTurn(ctx, participantID, questionID); err != nil {
		return nil, err
	}
	return &rpcutil.Empty{}, nil
}

func (s *Service) SkipParticipant(ctx context.Context, req *SkipRequest) (*rpcutil.Empty, error) {
	participantID, questionID, err := parsePair(req.ParticipantID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if err := s.app.SkipParticipant(ctx, participantID, questionID); err != nil {
		return nil, err
	}
	return &rpcutil.Empty{}, nil
}

func (s *Service) GetQueue(ctx context.Context, req *GetQueueRequest) (*QueueSnapshot, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	questionID, err := rpcutil.ParseOptionalUUID("question_id", req.QuestionID)
	if err != nil {
		return nil, err
	}
	return s.app.GetQueue(ctx, sessionID, questionID)
}

func (s *Service) ListAnswers(ctx context.Context, req *ListAnswersRequest) (*ListAnswersResponse, error) {
	sessionID, err := rpcutil.ParseOptionalUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	participantID, err := rpcutil.ParseOptionalUUID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, err
	}
	answers, err := s.app.ListAnswers(ctx, store.AnswerFilter{SessionID: sessionID, ParticipantID: participantID})
	if err != nil {
		return nil, err
	}
	return &ListAnswersResponse{Total: len(answers), Answers: answers}, nil
}

func parsePair(participant, question string) (uuid.UUID, uuid.UUID, error) {
	participantID, err := rpcutil.ParseUUID("participant_id", participant)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	questionID, err := rpcutil.ParseUUID("question_id", question)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return participantID, questionID, nil
}
