package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one participant's claim to answer a question.
// The head of a queue is the active entry with the lowest (Position, JoinedAt).
type QueueEntry struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Position      int       `json:"position"`
	IsActive      bool      `json:"is_active"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Before orders entries by position, then join time.
func (e QueueEntry) Before(other QueueEntry) bool {
	if e.Position != other.Position {
		return e.Position < other.Position
	}
	return e.JoinedAt.Before(other.JoinedAt)
}

// QueueEntryView is an active queue entry enriched for display.
type QueueEntryView struct {
	ID                   uuid.UUID `json:"id"`
	ParticipantID        uuid.UUID `json:"participant_id"`
	Position             int       `json:"position"`
	JoinedAt             time.Time `json:"joined_at"`
	Username             string    `json:"username"`
	GroupName            *string   `json:"group_name,omitempty"`
	Score                int       `json:"score"`
	IsCorrect            *bool     `json:"is_correct"`
	WaitingForEvaluation bool      `json:"waiting_for_evaluation"`
}

// AnswerRecord is a participant's multiple-choice answer to a question.
type AnswerRecord struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	OptionID      uuid.UUID `json:"option_id"`
	IsCorrect     bool      `json:"is_correct"`
	AnsweredAt    time.Time `json:"answered_at"`
}

// VerbalResponse is a participant's spoken answer. IsCorrect is nil until the host grades it.
type VerbalResponse struct {
	ID            uuid.UUID  `json:"id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	QuestionID    uuid.UUID  `json:"question_id"`
	IsCorrect     *bool      `json:"is_correct"`
	AnsweredAt    time.Time  `json:"answered_at"`
	EvaluatedAt   *time.Time `json:"evaluated_at,omitempty"`
}

// Graded reports whether the host has already ruled on the response.
func (v VerbalResponse) Graded() bool {
	return v.IsCorrect != nil
}

// AnswerHistoryItem is one recorded answer, multiple-choice or verbal, as the host reviews it.
// OptionID and OptionText are nil for verbal responses; IsCorrect is nil while a verbal response awaits grading.
type AnswerHistoryItem struct {
	ID            uuid.UUID    `json:"id"`
	SessionID     uuid.UUID    `json:"session_id"`
	ParticipantID uuid.UUID    `json:"participant_id"`
	Username      string       `json:"username"`
	GroupName     *string      `json:"group_name,omitempty"`
	QuestionID    uuid.UUID    `json:"question_id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	OptionID      *uuid.UUID   `json:"option_id,omitempty"`
	OptionText    *string      `json:"option_text,omitempty"`
	IsCorrect     *bool        `json:"is_correct"`
	AnsweredAt    time.Time    `json:"answered_at"`
}
