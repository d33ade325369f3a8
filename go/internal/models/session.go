package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a quiz session.
type SessionStatus string

const (
	SessionStatusDraft    SessionStatus = "draft"
	SessionStatusReady    SessionStatus = "ready"
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusFinished SessionStatus = "finished"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusDraft, SessionStatusReady, SessionStatusRunning, SessionStatusFinished:
		return true
	}
	return false
}

// Session is one run of a quiz from draft to finished.
type Session struct {
	ID                   uuid.UUID     `json:"id"`
	Name                 string        `json:"name"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	IsQuestionClosed     bool          `json:"is_question_closed"`
	QuestionDurationSec  int           `json:"question_duration_sec"`
	CreatedAt            time.Time     `json:"created_at"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	FinishedAt           *time.Time    `json:"finished_at,omitempty"`
}

// AcceptsAnswers reports whether a participant may currently claim or use a turn.
func (s Session) AcceptsAnswers() bool {
	return s.Status == SessionStatusRunning && !s.IsQuestionClosed
}
