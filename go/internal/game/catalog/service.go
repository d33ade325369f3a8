package catalog

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/google/uuid"
)

const ServiceName = "quiz.v1.CatalogService"

var (
	CreateSessionProcedure   = rpcutil.Procedure(ServiceName, "CreateSession")
	CreateQuestionProcedure  = rpcutil.Procedure(ServiceName, "CreateQuestion")
	DeleteQuestionProcedure  = rpcutil.Procedure(ServiceName, "DeleteQuestion")
	ListQuestionsProcedure   = rpcutil.Procedure(ServiceName, "ListQuestions")
	UpdateQuestionProcedure  = rpcutil.Procedure(ServiceName, "UpdateQuestion")
	ImportQuestionsProcedure = rpcutil.Procedure(ServiceName, "ImportQuestions")
	ExportQuestionsProcedure = rpcutil.Procedure(ServiceName, "ExportQuestions")
)

var HostProcedures = []string{
	CreateSessionProcedure,
	CreateQuestionProcedure,
	DeleteQuestionProcedure,
	ListQuestionsProcedure,
	UpdateQuestionProcedure,
	ImportQuestionsProcedure,
	ExportQuestionsProcedure,
}

// CatalogApp defines what the service layer needs from the catalog
type CatalogApp interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error)
	CreateQuestion(ctx context.Context, req CreateQuestionRequest) (*models.Question, error)
	ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error)
	DeleteQuestion(ctx context.Context, sessionID, questionID uuid.UUID) error
	UpdateQuestion(ctx context.Context, req UpdateQuestionRequest) (*models.Question, error)
	ImportQuestions(ctx context.Context, sessionID uuid.UUID, qs []QuestionInput) ([]models.Question, error)
	ExportQuestions(ctx context.Context, sessionID uuid.UUID) (*QuizExport, error)
}

type CreateSessionMessage struct {
	Name                string `json:"name" validate:"required,max=200"`
	QuestionDurationSec int    `json:"question_duration_sec" validate:"gte=0,lte=3600"`
}

type CreateQuestionMessage struct {
	SessionID    string        `json:"session_id" validate:"required,uuid"`
	Text         string        `json:"text" validate:"required"`
	ImageURL     *string       `json:"image_url,omitempty" validate:"omitempty,url"`
	QuestionType string        `json:"question_type" validate:"required,oneof=multiple_choice verbal"`
	Options      []OptionInput `json:"options" validate:"dive"`
}

type UpdateQuestionMessage struct {
	QuestionID string `json:"question_id" validate:"required,uuid"`
	CreateQuestionMessage
}

type ImportQuestionsMessage struct {
	SessionID string          `json:"session_id" validate:"required,uuid"`
	Questions []QuestionInput `json:"questions" validate:"required,min=1"`
}

type QuestionRef struct {
	SessionID  string `json:"session_id" validate:"required,uuid"`
	QuestionID string `json:"question_id" validate:"required,uuid"`
}

type ListQuestionsMessage struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

type ListQuestionsResponse struct {
	Questions []models.Question `json:"questions"`
}

type Service struct {
	app CatalogApp
}

func NewService(app CatalogApp) *Service {
	return &Service{app: app}
}

func NewCatalogServiceHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	h := rpcutil.NewServiceHandler(ServiceName, opts...)
	rpcutil.Handle(h, "CreateSession", s.CreateSession)
	rpcutil.Handle(h, "CreateQuestion", s.CreateQuestion)
	rpcutil.Handle(h, "ListQuestions", s.ListQuestions)
	rpcutil.Handle(h, "DeleteQuestion", s.DeleteQuestion)
	rpcutil.Handle(h, "UpdateQuestion", s.UpdateQuestion)
	rpcutil.Handle(h, "ImportQuestions", s.ImportQuestions)
	rpcutil.Handle(h, "ExportQuestions", s.ExportQuestions)
	return h.Path(), h
}

func (s *Service) CreateSession(ctx context.Context, req *CreateSessionMessage) (*models.Session, error) {
	return s.app.CreateSession(ctx, CreateSessionRequest{Name: req.Name, QuestionDurationSec: req.QuestionDurationSec})
}

func (s *Service) CreateQuestion(ctx context.Context, req *CreateQuestionMessage) (*models.Question, error) {
	q, err := req.toRequest()
	if err != nil {
		return nil, err
	}
	return s.app.CreateQuestion(ctx, q)
}

func (s *Service) UpdateQuestion(ctx context.Context, req *UpdateQuestionMessage) (*models.Question, error) {
	questionID, err := rpcutil.ParseUUID("question_id", req.QuestionID)
	if err != nil {
		return nil, err
	}
	q, err := req.toRequest()
	if err != nil {
		return nil, err
	}
	return s.app.UpdateQuestion(ctx, UpdateQuestionRequest{QuestionID: questionID, CreateQuestionRequest: q})
}

func (s *Service) ImportQuestions(ctx context.Context, req *ImportQuestionsMessage) (*ListQuestionsResponse, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	qs, err := s.app.ImportQuestions(ctx, sessionID, req.Questions)
	if err != nil {
		return nil, err
	}
	return &ListQuestionsResponse{Questions: qs}, nil
}

func (s *Service) ExportQuestions(ctx context.Context, req *ListQuestionsMessage) (*QuizExport, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	return s.app.ExportQuestions(ctx, sessionID)
}

func (m *CreateQuestionMessage) toRequest() (CreateQuestionRequest, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", m.SessionID)
	if err != nil {
		return CreateQuestionRequest{}, err
	}
	return CreateQuestionRequest{
		SessionID:    sessionID,
		Text:         m.Text,
		ImageURL:     m.ImageURL,
		QuestionType: models.QuestionType(m.QuestionType),
		Options:      m.Options,
	}, nil
}

func (s *Service) ListQuestions(ctx context.Context, req *ListQuestionsMessage) (*ListQuestionsResponse, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	qs, err := s.app.ListQuestions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &ListQuestionsResponse{Questions: qs}, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, req *QuestionRef) (*rpcutil.Empty, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	questionID, err := rpcutil.ParseUUID("question_id", req.QuestionID)
	if err != nil {
		return nil, err
	}
	if err := s.app.DeleteQuestion(ctx, sessionID, questionID); err != nil {
		return nil, err
	}
	return &rpcutil.Empty{}, nil
}
