package projection

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const ServiceName = "quiz.v1.ProjectionService"

var GetCurrentQuestionProcedure = rpcutil.Procedure(ServiceName, "GetCurrentQuestion")

// ProjectionApp defines what the service layer needs from the read projection
type ProjectionApp interface {
	GetCurrentQuestion(ctx context.Context, sessionID uuid.UUID, participantID *uuid.UUID) (*CurrentState, error)
}

type GetCurrentQuestionRequest struct {
	SessionID     string `json:"session_id" validate:"required,uuid"`
	ParticipantID string `json:"participant_id,omitempty" validate:"omitempty,uuid"`
}

type Service struct {
	app ProjectionApp
}

func NewService(app ProjectionApp) *Service {
	return &Service{app: app}
}

func NewProjectionServiceHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	h := rpcutil.NewServiceHandler(ServiceName, opts...)
	rpcutil.Handle(h, "GetCurrentQuestion", s.GetCurrentQuestion)
	return h.Path(), h
}

func (s *Service) GetCurrentQuestion(ctx context.Context, req *GetCurrentQuestionRequest) (*CurrentState, error) {
	sessionID, err := rpcutil.ParseUUID("session_id", req.SessionID)
	if err != nil {
		return nil, err
	}
	participantID, err := rpcutil.ParseOptionalUUID("participant_id", req.ParticipantID)
	if err != nil {
		return nil, err
	}
	return s.app.GetCurrentQuestion(ctx, sessionID, participantID)
}

// StateHandler serves the projection as plain JSON at GET /sessions/{id}/state?participant_id=...
// for clients that re-fetch after a broadcast.
func StateHandler(app ProjectionApp) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := rpcutil.ParseUUID("session_id", r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		participantID, err := rpcutil.ParseOptionalUUID("participant_id", r.URL.Query().Get("participant_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		state, err := app.GetCurrentQuestion(r.Context(), sessionID, participantID)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state); err != nil {
			log.Warn().Err(err).Msg("failed to write state response")
		}
	})
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindNotFound:           http.StatusNotFound,
	apperrors.KindConflict:           http.StatusConflict,
	apperrors.KindForbidden:          http.StatusForbidden,
	apperrors.KindPreconditionFailed: http.StatusPreconditionFailed,
	apperrors.KindInvalidInput:       http.StatusBadRequest,
	apperrors.KindInternal:           http.StatusInternalServerError,
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		log.Error().Err(err).Msg("state request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(rpcutil.ErrorKindHeader, string(kind))
	w.WriteHeader(kindStatus[kind])
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":    string(kind),
		"message": apperrors.Message(err),
	})
}
