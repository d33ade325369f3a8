package store

import (
	"context"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
)

// Store opens units of work against the durable quiz state.
type Store interface {
	// InTx runs fn in one transaction. Any error from fn rolls back every write it made.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn without taking write locks.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside a unit of work.
// Lookups that match nothing return ErrNotFound; uniqueness violations return ErrConflict.
type Tx interface {
	SessionTx
	QuestionTx
	ParticipantTx
	QueueTx
	AnswerTx
}

type SessionTx interface {
	CreateSession(ctx context.Context, s models.Session) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// LockSession reads the session and holds its row lock until the unit of work ends.
	LockSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateSessionLifecycle(ctx context.Context, s models.Session) (*models.Session, error)
	SetQuestionClosed(ctx context.Context, id uuid.UUID, closed bool) error
}

type QuestionTx interface {
	CountQuestions(ctx context.Context, sessionID uuid.UUID) (int, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	// GetQuestionByIndex resolves a 0-based cursor in position order.
	GetQuestionByIndex(ctx context.Context, sessionID uuid.UUID, index int) (*models.Question, error)
	ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error)
	// CreateQuestion appends q (and its options) after the session's last question.
	CreateQuestion(ctx context.Context, q models.Question) (*models.Question, error)
	// UpdateQuestion rewrites the text, image and type of q and replaces its options. Position is kept.
	UpdateQuestion(ctx context.Context, q models.Question) (*models.Question, error)
	// DeleteQuestion removes the question and shifts later questions up so positions stay 1..n.
	DeleteQuestion(ctx context.Context, sessionID, questionID uuid.UUID) error
	DeleteQuestionsForSession(ctx context.Context, sessionID uuid.UUID) (int, error)
	GetOption(ctx context.Context, id uuid.UUID) (*models.AnswerOption, error)
}

type ParticipantTx interface {
	CreateParticipant(ctx context.Context, p models.Participant) (*models.Participant, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	DeleteParticipant(ctx context.Context, id uuid.UUID) error
	// ListParticipants orders by score descending, then join time.
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	IncrementScore(ctx context.Context, participantID uuid.UUID, delta int) (int, error)
	ResetScores(ctx context.Context, sessionID uuid.UUID) error
	SetScore(ctx context.Context, participantID uuid.UUID, score int) (*models.Participant, error)
}

type QueueTx interface {
	GetActiveEntry(ctx context.Context, sessionID, questionID, participantID uuid.UUID) (*models.QueueEntry, error)
	// GetQueueHead returns the active entry with the lowest (position, joined_at).
	GetQueueHead(ctx context.Context, sessionID, questionID uuid.UUID) (*models.QueueEntry, error)
	CountActiveEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int, error)
	// NextQueuePosition is one past the highest position ever used for the question.
	NextQueuePosition(ctx context.Context, sessionID, questionID uuid.UUID) (int, error)
	InsertQueueEntry(ctx context.Context, e models.QueueEntry) (*models.QueueEntry, error)
	DeactivateEntry(ctx context.Context, id uuid.UUID) error
	DeactivateQuestionEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int, error)
	DeleteQueueForSession(ctx context.Context, sessionID uuid.UUID) (int, error)
	ListParticipantActiveEntries(ctx context.Context, participantID uuid.UUID) ([]models.QueueEntry, error)
	ListActiveQueue(ctx context.Context, sessionID, questionID uuid.UUID) ([]models.QueueEntryView, error)
	// CountEntriesAhead counts active entries ordered strictly before e.
	CountEntriesAhead(ctx context.Context, e models.QueueEntry) (int, error)
}

type AnswerTx interface {
	UpsertAnswerRecord(ctx context.Context, r models.AnswerRecord) (*models.AnswerRecord, error)
	GetVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID) (*models.VerbalResponse, error)
	// UpsertVerbalResponse records an ungraded response, clearing any previous grade.
	UpsertVerbalResponse(ctx context.Context, r models.VerbalResponse) (*models.VerbalResponse, error)
	EvaluateVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID, correct bool, at time.Time) (*models.VerbalResponse, error)
	// DeleteAnswersForSession drops every answer record and verbal response of the session's questions.
	DeleteAnswersForSession(ctx context.Context, sessionID uuid.UUID) (int, error)
	// ListAnswers returns recorded answers oldest first. Nil filter fields match everything.
	ListAnswers(ctx context.Context, f AnswerFilter) ([]models.AnswerHistoryItem, error)
}

type AnswerFilter struct {
	SessionID     *uuid.UUID
	ParticipantID *uuid.UUID
}
