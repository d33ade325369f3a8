package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const participantColumns = `id, session_id, username, group_name, score, joined_at`

func scanParticipant(row interface{ Scan(...any) error }) (Participant, error) {
	var i Participant
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.Username,
		&i.GroupName,
		&i.Score,
		&i.JoinedAt,
	)
	return i, err
}

const createParticipant = `-- name: CreateParticipant :one
INSERT INTO participants (id, session_id, username, group_name, joined_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + participantColumns

type CreateParticipantParams struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Username  string
	GroupName sql.NullString
	JoinedAt  time.Time
}

func (q *Queries) CreateParticipant(ctx context.Context, arg CreateParticipantParams) (Participant, error) {
	row := q.db.QueryRowContext(ctx, createParticipant,
		arg.ID,
		arg.SessionID,
		arg.Username,
		arg.GroupName,
		arg.JoinedAt,
	)
	return scanParticipant(row)
}

const getParticipant = `-- name: GetParticipant :one
SELECT ` + participantColumns + `
FROM participants
WHERE id = $1`

func (q *Queries) GetParticipant(ctx context.Context, id uuid.UUID) (Participant, error) {
	row := q.db.QueryRowContext(ctx, getParticipant, id)
	return scanParticipant(row)
}

const deleteParticipant = `-- name: DeleteParticipant :execrows
DELETE FROM participants WHERE id = $1`

func (q *Queries) DeleteParticipant(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteParticipant, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listParticipants = `-- name: ListParticipants :many
SELECT ` + participantColumns + `
FROM participants
WHERE session_id = $1
ORDER BY score DESC, joined_at ASC`

func (q *Queries) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx, listParticipants, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Participant
	for rows.Next() {
		i, err := scanParticipant(rows)
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

const incrementScore = `-- name: IncrementScore :one
UPDATE participants
SET score = score + $2
WHERE id = $1
RETURNING score`

func (q *Queries) IncrementScore(ctx context.Context, id uuid.UUID, delta int32) (int32, error) {
	row := q.db.QueryRowContext(ctx, incrementScore, id, delta)
	var score int32
	err := row.Scan(&score)
	return score, err
}

const resetScores = `-- name: ResetScores :exec
UPDATE participants SET score = 0 WHERE session_id = $1`

func (q *Queries) ResetScores(ctx context.Context, sessionID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, resetScores, sessionID)
	return err
}

const setScore = `-- name: SetScore :one
UPDATE participants
SET score = $2
WHERE id = $1
RETURNING ` + participantColumns

func (q *Queries) SetScore(ctx context.Context, id uuid.UUID, score int32) (Participant, error) {
	row := q.db.QueryRowContext(ctx, setScore, id, score)
	return scanParticipant(row)
}
