package projection

import (
	"context"
	"errors"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

// ParticipantStatus is one participant's place in the current question's queue.
type ParticipantStatus struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	InQueue       bool      `json:"in_queue"`
	HasQuestion   bool      `json:"has_question"`
	Position      *int      `json:"position,omitempty"`
	Score         int       `json:"score"`
}

// CurrentState is what a client should render right now.
type CurrentState struct {
	SessionID            uuid.UUID            `json:"session_id"`
	Status               models.SessionStatus `json:"status"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	IsQuestionClosed     bool                 `json:"is_question_closed"`
	TotalQuestions       int                  `json:"total_questions"`
	Finished             bool                 `json:"finished"`
	Question             *models.QuestionView `json:"question,omitempty"`
	Participant          *ParticipantStatus   `json:"participant,omitempty"`
}

type App struct {
	store store.Store
}

func NewApp(s store.Store) *App {
	return &App{store: s}
}

// GetCurrentQuestion combines session, question and queue into one read. It never takes the session lock.
func (a *App) GetCurrentQuestion(ctx context.Context, sessionID uuid.UUID, participantID *uuid.UUID) (*CurrentState, error) {
	var out *CurrentState
	err := a.store.View(ctx, func(tx store.Tx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return store.Translate(err, "session")
		}
		total, err := tx.CountQuestions(ctx, s.ID)
		if err != nil {
			return store.Translate(err, "questions")
		}
		state := &CurrentState{
			SessionID:            s.ID,
			Status:               s.Status,
			CurrentQuestionIndex: s.CurrentQuestionIndex,
			IsQuestionClosed:     s.IsQuestionClosed,
			TotalQuestions:       total,
			Finished:             s.Status == models.SessionStatusFinished,
		}
		out = state

		var p *models.Participant
		if participantID != nil {
			if p, err = tx.GetParticipant(ctx, *participantID); err != nil {
				return store.Translate(err, "participant")
			}
			if p.SessionID != s.ID {
				return apperrors.InvalidInput("participant %s is not in session %s", p.ID, s.ID)
			}
			state.Participant = &ParticipantStatus{ParticipantID: p.ID, Score: p.Score}
		}

		if s.Status != models.SessionStatusRunning {
			return nil
		}
		if s.CurrentQuestionIndex >= total {
			state.Finished = true
			return nil
		}
		q, err := tx.GetQuestionByIndex(ctx, s.ID, s.CurrentQuestionIndex)
		if err != nil {
			return store.Translate(err, "current question")
		}
		view := q.View()
		state.Question = &view

		if p == nil {
			return nil
		}
		return queueStatus(ctx, tx, s.ID, q.ID, state.Participant)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func queueStatus(ctx context.Context, tx store.Tx, sessionID, questionID uuid.UUID, st *ParticipantStatus) error {
	entry, err := tx.GetActiveEntry(ctx, sessionID, questionID, st.ParticipantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return store.Translate(err, "queue entry")
	}
	st.InQueue = true

	head, err := tx.GetQueueHead(ctx, sessionID, questionID)
	if err != nil {
		return store.Translate(err, "queue head")
	}
	st.HasQuestion = head.ID == entry.ID

	ahead, err := tx.CountEntriesAhead(ctx, *entry)
	if err != nil {
		return store.Translate(err, "queue position")
	}
	position := ahead + 1
	st.Position = &position
	return nil
}
