package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type QuizSession struct {
	ID                   uuid.UUID
	Name                 string
	Status               string
	CurrentQuestionIndex int32
	IsQuestionClosed     bool
	QuestionDurationSec  int32
	CreatedAt            time.Time
	StartedAt            sql.NullTime
	FinishedAt           sql.NullTime
}

// QuestionWithOptions carries the options aggregated as a JSON array.
type QuestionWithOptions struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Text         string
	ImageUrl     sql.NullString
	Position     int32
	QuestionType string
	CreatedAt    time.Time
	Options      pqtype.NullRawMessage
}

type AnswerOption struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	IsCorrect  bool
	SortOrder  int32
}

type Participant struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Username  string
	GroupName sql.NullString
	Score     int32
	JoinedAt  time.Time
}

type AnswerRecord struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	OptionID      uuid.UUID
	IsCorrect     bool
	AnsweredAt    time.Time
}

type VerbalResponse struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	IsCorrect     sql.NullBool
	AnsweredAt    time.Time
	EvaluatedAt   sql.NullTime
}

type QueueEntry struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	QuestionID    uuid.UUID
	ParticipantID uuid.UUID
	Position      int32
	IsActive      bool
	JoinedAt      time.Time
}

type QuizOutbox struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.NullUUID
	EventType     string
	Payload       pqtype.NullRawMessage
	CreatedAt     time.Time
	SentAt        sql.NullTime
}
