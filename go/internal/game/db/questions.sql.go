package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const questionWithOptionsColumns = `q.id, q.session_id, q.text, q.image_url, q.position, q.question_type, q.created_at,
       (SELECT json_agg(json_build_object(
                   'id', o.id,
                   'question_id', o.question_id,
                   'text', o.text,
                   'is_correct', o.is_correct
               ) ORDER BY o.sort_order, o.id)
        FROM answer_options o
        WHERE o.question_id = q.id) AS options`

func scanQuestion(row interface{ Scan(...any) error }) (QuestionWithOptions, error) {
	var i QuestionWithOptions
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.Text,
		&i.ImageUrl,
		&i.Position,
		&i.QuestionType,
		&i.CreatedAt,
		&i.Options,
	)
	return i, err
}

const countQuestions = `-- name: CountQuestions :one
SELECT COUNT(*) FROM questions WHERE session_id = $1`

func (q *Queries) CountQuestions(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countQuestions, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getQuestion = `-- name: GetQuestion :one
SELECT ` + questionWithOptionsColumns + `
FROM questions q
WHERE q.id = $1`

func (q *Queries) GetQuestion(ctx context.Context, id uuid.UUID) (QuestionWithOptions, error) {
	row := q.db.QueryRowContext(ctx, getQuestion, id)
	return scanQuestion(row)
}

const getQuestionByIndex = `-- name: GetQuestionByIndex :one
SELECT ` + questionWithOptionsColumns + `
FROM questions q
WHERE q.session_id = $1
ORDER BY q.position, q.id
OFFSET $2
LIMIT 1`

// GetQuestionByIndex resolves the 0-based cursor to the question at that rank.
func (q *Queries) GetQuestionByIndex(ctx context.Context, sessionID uuid.UUID, index int32) (QuestionWithOptions, error) {
	row := q.db.QueryRowContext(ctx, getQuestionByIndex, sessionID, index)
	return scanQuestion(row)
}

const listQuestions = `-- name: ListQuestions :many
SELECT ` + questionWithOptionsColumns + `
FROM questions q
WHERE q.session_id = $1
ORDER BY q.position, q.id`

func (q *Queries) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]QuestionWithOptions, error) {
	rows, err := q.db.QueryContext(ctx, listQuestions, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuestionWithOptions
	for rows.Next() {
		i, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const nextQuestionPosition = `-- name: NextQuestionPosition :one
SELECT COALESCE(MAX(position), 0) + 1 FROM questions WHERE session_id = $1`

func (q *Queries) NextQuestionPosition(ctx context.Context, sessionID uuid.UUID) (int32, error) {
	row := q.db.QueryRowContext(ctx, nextQuestionPosition, sessionID)
	var position int32
	err := row.Scan(&position)
	return position, err
}

const createQuestion = `-- name: CreateQuestion :exec
INSERT INTO questions (id, session_id, text, image_url, position, question_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

type CreateQuestionParams struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Text         string
	ImageUrl     sql.NullString
	Position     int32
	QuestionType string
	CreatedAt    time.Time
}

func (q *Queries) CreateQuestion(ctx context.Context, arg CreateQuestionParams) error {
	_, err := q.db.ExecContext(ctx, createQuestion,
		arg.ID,
		arg.SessionID,
		arg.Text,
		arg.ImageUrl,
		arg.Position,
		arg.QuestionType,
		arg.CreatedAt,
	)
	return err
}

const createAnswerOption = `-- name: CreateAnswerOption :exec
INSERT INTO answer_options (id, question_id, text, is_correct, sort_order)
VALUES ($1, $2, $3, $4, $5)`

type CreateAnswerOptionParams struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	IsCorrect  bool
	SortOrder  int32
}

func (q *Queries) CreateAnswerOption(ctx context.Context, arg CreateAnswerOptionParams) error {
	_, err := q.db.ExecContext(ctx, createAnswerOption,
		arg.ID,
		arg.QuestionID,
		arg.Text,
		arg.IsCorrect,
		arg.SortOrder,
	)
	return err
}

const getAnswerOption = `-- name: GetAnswerOption :one
SELECT id, question_id, text, is_correct, sort_order
FROM answer_options
WHERE id = $1`

func (q *Queries) GetAnswerOption(ctx context.Context, id uuid.UUID) (AnswerOption, error) {
	row := q.db.QueryRowContext(ctx, getAnswerOption, id)
	var i AnswerOption
	err := row.Scan(
		&i.ID,
		&i.QuestionID,
		&i.Text,
		&i.IsCorrect,
		&i.SortOrder,
	)
	return i, err
}

const deleteQuestion = `-- name: DeleteQuestion :one
DELETE FROM questions WHERE id = $1 AND session_id = $2
RETURNING position`

func (q *Queries) DeleteQuestion(ctx context.Context, id, sessionID uuid.UUID) (int32, error) {
	row := q.db.QueryRowContext(ctx, deleteQuestion, id, sessionID)
	var position int32
	err := row.Scan(&position)
	return position, err
}

const closeQuestionGap = `-- name: CloseQuestionGap :execrows
UPDATE questions SET position = position - 1
WHERE session_id = $1 AND position > $2`

func (q *Queries) CloseQuestionGap(ctx context.Context, sessionID uuid.UUID, position int32) (int64, error) {
	result, err := q.db.ExecContext(ctx, closeQuestionGap, sessionID, position)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateQuestion = `-- name: UpdateQuestion :execrows
UPDATE questions
SET text = $3, image_url = $4, question_type = $5
WHERE id = $1 AND session_id = $2`

type UpdateQuestionParams struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Text         string
	ImageUrl     sql.NullString
	QuestionType string
}

func (q *Queries) UpdateQuestion(ctx context.Context, arg UpdateQuestionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateQuestion,
		arg.ID,
		arg.SessionID,
		arg.Text,
		arg.ImageUrl,
		arg.QuestionType,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAnswerOptions = `-- name: DeleteAnswerOptions :exec
DELETE FROM answer_options WHERE question_id = $1`

func (q *Queries) DeleteAnswerOptions(ctx context.Context, questionID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteAnswerOptions, questionID)
	return err
}

const deleteQuestionsForSession = `-- name: DeleteQuestionsForSession :execrows
DELETE FROM questions WHERE session_id = $1`

func (q *Queries) DeleteQuestionsForSession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteQuestionsForSession, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
