package events

import (
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

// SessionPayload accompanies every lifecycle event (opened, closed, started, stopped, finished).
type SessionPayload struct {
	SessionID            uuid.UUID            `json:"session_id"`
	Status               models.SessionStatus `json:"status"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	IsQuestionClosed     bool                 `json:"is_question_closed"`
	At                   time.Time            `json:"at"`
}

func NewSessionPayload(s models.Session, at time.Time) SessionPayload {
	return SessionPayload{
		SessionID:            s.ID,
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		IsQuestionClosed:     s.IsQuestionClosed,
		At:                   at,
	}
}

type QuestionAdvancedPayload struct {
	SessionID            uuid.UUID `json:"session_id"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	Finished             bool      `json:"finished"`
}

type CountdownTickPayload struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      int       `json:"value"`
	TickedAt   time.Time `json:"ticked_at"`
}

// QuestionReadyPayload never carries the answer key.
type QuestionReadyPayload struct {
	SessionID uuid.UUID           `json:"session_id"`
	Question  models.QuestionView `json:"question"`
}

type QuestionAssignedPayload struct {
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
}

// QuestionClosedPayload has a nil WinnerID when nobody scored.
type QuestionClosedPayload struct {
	SessionID  uuid.UUID  `json:"session_id"`
	QuestionID uuid.UUID  `json:"question_id"`
	WinnerID   *uuid.UUID `json:"winner_id"`
}

type QueueUpdatedPayload struct {
	SessionID  uuid.UUID               `json:"session_id"`
	QuestionID uuid.UUID               `json:"question_id"`
	Queue      []models.QueueEntryView `json:"queue"`
}

type AnswerSubmittedPayload struct {
	SessionID            uuid.UUID `json:"session_id"`
	QuestionID           uuid.UUID `json:"question_id"`
	ParticipantID        uuid.UUID `json:"participant_id"`
	WaitingForEvaluation bool      `json:"waiting_for_evaluation"`
}

type AnswerEvaluatedPayload struct {
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	IsCorrect     bool      `json:"is_correct"`
}

type ScoreUpdatedPayload struct {
	SessionID     uuid.UUID `json:"session_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Score         int       `json:"score"`
}

type ParticipantJoinedPayload struct {
	Participant models.Participant `json:"participant"`
}

type ParticipantLeftPayload struct {
	SessionID     uuid.UUID `json:"session_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
}

type ParticipantSkippedPayload struct {
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	ByHost        bool      `json:"by_host"`
}
