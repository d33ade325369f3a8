package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, name, status, current_question_index, is_question_closed,
       question_duration_sec, created_at, started_at, finished_at`

func scanSession(row interface{ Scan(...any) error }) (QuizSession, error) {
	var i QuizSession
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Status,
		&i.CurrentQuestionIndex,
		&i.IsQuestionClosed,
		&i.QuestionDurationSec,
		&i.CreatedAt,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}

const createSession = `-- name: CreateSession :one
INSERT INTO quiz_sessions (id, name, question_duration_sec, created_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + sessionColumns

type CreateSessionParams struct {
	ID                  uuid.UUID
	Name                string
	QuestionDurationSec int32
	CreatedAt           time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (QuizSession, error) {
	row := q.db.QueryRowContext(ctx, createSession, arg.ID, arg.Name, arg.QuestionDurationSec, arg.CreatedAt)
	return scanSession(row)
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + `
FROM quiz_sessions
WHERE id = $1`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (QuizSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	return scanSession(row)
}

const lockSession = `-- name: LockSession :one
SELECT ` + sessionColumns + `
FROM quiz_sessions
WHERE id = $1
FOR UPDATE`

// LockSession takes the row lock that serializes every mutation of one session.
func (q *Queries) LockSession(ctx context.Context, id uuid.UUID) (QuizSession, error) {
	row := q.db.QueryRowContext(ctx, lockSession, id)
	return scanSession(row)
}

const updateSessionLifecycle = `-- name: UpdateSessionLifecycle :one
UPDATE quiz_sessions
SET status                 = $2,
    current_question_index = $3,
    is_question_closed     = $4,
    question_duration_sec  = $5,
    started_at             = $6,
    finished_at            = $7
WHERE id = $1
RETURNING ` + sessionColumns

type UpdateSessionLifecycleParams struct {
	ID                   uuid.UUID
	Status               string
	CurrentQuestionIndex int32
	IsQuestionClosed     bool
	QuestionDurationSec  int32
	StartedAt            sql.NullTime
	FinishedAt           sql.NullTime
}

func (q *Queries) UpdateSessionLifecycle(ctx context.Context, arg UpdateSessionLifecycleParams) (QuizSession, error) {
	row := q.db.QueryRowContext(ctx, updateSessionLifecycle,
		arg.ID,
		arg.Status,
		arg.CurrentQuestionIndex,
		arg.IsQuestionClosed,
		arg.QuestionDurationSec,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return scanSession(row)
}

const setQuestionClosed = `-- name: SetQuestionClosed :exec
UPDATE quiz_sessions
SET is_question_closed = $2
WHERE id = $1`

func (q *Queries) SetQuestionClosed(ctx context.Context, id uuid.UUID, closed bool) error {
	_, err := q.db.ExecContext(ctx, setQuestionClosed, id, closed)
	return err
}
