package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType defines how a question is graded.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeVerbal         QuestionType = "verbal"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeVerbal
}

// AnswerOption is one selectable answer of a multiple-choice question.
type AnswerOption struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
}

// Question belongs to a session and is traversed in Position order (1-based).
type Question struct {
	ID           uuid.UUID      `json:"id"`
	SessionID    uuid.UUID      `json:"session_id"`
	Text         string         `json:"text"`
	ImageURL     *string        `json:"image_url,omitempty"`
	Position     int            `json:"position"`
	QuestionType QuestionType   `json:"question_type"`
	Options      []AnswerOption `json:"options"`
	CreatedAt    time.Time      `json:"created_at"`
}

// IsVerbal reports whether the question is graded by the host.
func (q Question) IsVerbal() bool {
	return q.QuestionType == QuestionTypeVerbal
}

// Index returns the 0-based cursor value that points at this question.
func (q Question) Index() int {
	if q.Position < 1 {
		return 0
	}
	return q.Position - 1
}

// OptionView is an answer option with its correctness stripped.
type OptionView struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// QuestionView is what participants are allowed to see of a question.
type QuestionView struct {
	ID           uuid.UUID    `json:"id"`
	Text         string       `json:"text"`
	ImageURL     *string      `json:"image_url,omitempty"`
	Position     int          `json:"position"`
	QuestionType QuestionType `json:"question_type"`
	Options      []OptionView `json:"options"`
}

// View strips the answer key from q.
func (q Question) View() QuestionView {
	opts := make([]OptionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, OptionView{ID: o.ID, Text: o.Text})
	}
	return QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		ImageURL:     q.ImageURL,
		Position:     q.Position,
		QuestionType: q.QuestionType,
		Options:      opts,
	}
}
