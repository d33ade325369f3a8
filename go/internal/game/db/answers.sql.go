package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const upsertAnswerRecord = `-- name: UpsertAnswerRecord :one
INSERT INTO answer_records (id, participant_id, question_id, option_id, is_correct, answered_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (participant_id, question_id)
DO UPDATE SET option_id   = EXCLUDED.option_id,
              is_correct  = EXCLUDED.is_correct,
              answered_at = EXCLUDED.answered_at
RETURNING id, participant_id, question_id, option_id, is_correct, answered_at`

type UpsertAnswerRecordParams struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	OptionID      uuid.UUID
	IsCorrect     bool
	AnsweredAt    time.Time
}

func (q *Queries) UpsertAnswerRecord(ctx context.Context, arg UpsertAnswerRecordParams) (AnswerRecord, error) {
	row := q.db.QueryRowContext(ctx, upsertAnswerRecord,
		arg.ID,
		arg.ParticipantID,
		arg.QuestionID,
		arg.OptionID,
		arg.IsCorrect,
		arg.AnsweredAt,
	)
	var i AnswerRecord
	err := row.Scan(
		&i.ID,
		&i.ParticipantID,
		&i.QuestionID,
		&i.OptionID,
		&i.IsCorrect,
		&i.AnsweredAt,
	)
	return i, err
}

const verbalResponseColumns = `id, participant_id, question_id, is_correct, answered_at, evaluated_at`

func scanVerbalResponse(row interface{ Scan(...any) error }) (VerbalResponse, error) {
	var i VerbalResponse
	err := row.Scan(
		&i.ID,
		&i.ParticipantID,
		&i.QuestionID,
		&i.IsCorrect,
		&i.AnsweredAt,
		&i.EvaluatedAt,
	)
	return i, err
}

const getVerbalResponse = `-- name: GetVerbalResponse :one
SELECT ` + verbalResponseColumns + `
FROM verbal_responses
WHERE participant_id = $1 AND question_id = $2`

func (q *Queries) GetVerbalResponse(ctx context.Context, participantID, questionID uuid.UUID) (VerbalResponse, error) {
	row := q.db.QueryRowContext(ctx, getVerbalResponse, participantID, questionID)
	return scanVerbalResponse(row)
}

const upsertVerbalResponse = `-- name: UpsertVerbalResponse :one
INSERT INTO verbal_responses (id, participant_id, question_id, is_correct, answered_at)
VALUES ($1, $2, $3, NULL, $4)
ON CONFLICT (participant_id, question_id)
DO UPDATE SET is_correct   = NULL,
              evaluated_at = NULL,
              answered_at  = EXCLUDED.answered_at
RETURNING ` + verbalResponseColumns

type UpsertVerbalResponseParams struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	AnsweredAt    time.Time
}

// UpsertVerbalResponse records a submission awaiting grading, clearing any earlier grade.
func (q *Queries) UpsertVerbalResponse(ctx context.Context, arg UpsertVerbalResponseParams) (VerbalResponse, error) {
	row := q.db.QueryRowContext(ctx, upsertVerbalResponse,
		arg.ID,
		arg.ParticipantID,
		arg.QuestionID,
		arg.AnsweredAt,
	)
	return scanVerbalResponse(row)
}

const evaluateVerbalResponse = `-- name: EvaluateVerbalResponse :one
UPDATE verbal_responses
SET is_correct = $3, evaluated_at = $4
WHERE participant_id = $1 AND question_id = $2
RETURNING ` + verbalResponseColumns

type EvaluateVerbalResponseParams struct {
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	IsCorrect     sql.NullBool
	EvaluatedAt   sql.NullTime
}

func (q *Queries) EvaluateVerbalResponse(ctx context.Context, arg EvaluateVerbalResponseParams) (VerbalResponse, error) {
	row := q.db.QueryRowContext(ctx, evaluateVerbalResponse,
		arg.ParticipantID,
		arg.QuestionID,
		arg.IsCorrect,
		arg.EvaluatedAt,
	)
	return scanVerbalResponse(row)
}

const deleteAnswerRecordsForSession = `-- name: DeleteAnswerRecordsForSession :execrows
DELETE FROM answer_records ar
USING questions q
WHERE ar.question_id = q.id AND q.session_id = $1`

func (q *Queries) DeleteAnswerRecordsForSession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAnswerRecordsForSession, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteVerbalResponsesForSession = `-- name: DeleteVerbalResponsesForSession :execrows
DELETE FROM verbal_responses vr
USING questions q
WHERE vr.question_id = q.id AND q.session_id = $1`

func (q *Queries) DeleteVerbalResponsesForSession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteVerbalResponsesForSession, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listAnswerHistory = `-- name: ListAnswerHistory :many
SELECT h.id, h.participant_id, p.username, p.group_name, q.session_id, h.question_id,
       q.text, q.question_type, h.option_id, o.text, h.is_correct, h.answered_at
FROM (
    SELECT id, participant_id, question_id, option_id, is_correct, answered_at
    FROM answer_records
    UNION ALL
    SELECT id, participant_id, question_id, NULL::uuid, is_correct, answered_at
    FROM verbal_responses
) h
JOIN participants p ON p.id = h.participant_id
JOIN questions q ON q.id = h.question_id
LEFT JOIN answer_options o ON o.id = h.option_id
WHERE ($1::uuid IS NULL OR q.session_id = $1)
  AND ($2::uuid IS NULL OR h.participant_id = $2)
ORDER BY h.answered_at, h.id`

type ListAnswerHistoryParams struct {
	SessionID     uuid.NullUUID
	ParticipantID uuid.NullUUID
}

type AnswerHistoryRow struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	Username      string
	GroupName     sql.NullString
	SessionID     uuid.UUID
	QuestionID    uuid.UUID
	QuestionText  string
	QuestionType  string
	OptionID      uuid.NullUUID
	OptionText    sql.NullString
	IsCorrect     sql.NullBool
	AnsweredAt    time.Time
}

func (q *Queries) ListAnswerHistory(ctx context.Context, arg ListAnswerHistoryParams) ([]AnswerHistoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listAnswerHistory, arg.SessionID, arg.ParticipantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnswerHistoryRow
	for rows.Next() {
		var i AnswerHistoryRow
		if err := rows.Scan(
			&i.ID,
			&i.ParticipantID,
			&i.Username,
			&i.GroupName,
			&i.SessionID,
			&i.QuestionID,
			&i.QuestionText,
			&i.QuestionType,
			&i.OptionID,
			&i.OptionText,
			&i.IsCorrect,
			&i.AnsweredAt,
		); err != nil {
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
