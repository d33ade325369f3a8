package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const outboxColumns = `id, session_id, participant_id, event_type, payload, created_at, sent_at`

func scanOutbox(row interface{ Scan(...any) error }) (QuizOutbox, error) {
	var i QuizOutbox
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.ParticipantID,
		&i.EventType,
		&i.Payload,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const insertOutboxEvent = `-- name: InsertOutboxEvent :exec
INSERT INTO quiz_outbox (id, session_id, participant_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

type InsertOutboxEventParams struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.NullUUID
	EventType     string
	Payload       pqtype.NullRawMessage
	CreatedAt     time.Time
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent,
		arg.ID,
		arg.SessionID,
		arg.ParticipantID,
		arg.EventType,
		arg.Payload,
		arg.CreatedAt,
	)
	return err
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT ` + outboxColumns + `
FROM quiz_outbox
WHERE id = $1 AND sent_at IS NULL`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (QuizOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	return scanOutbox(row)
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT ` + outboxColumns + `
FROM quiz_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]QuizOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuizOutbox
	for rows.Next() {
		i, err := scanOutbox(rows)
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

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE quiz_outbox SET sent_at = NOW() WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}

const countPendingOutbox = `-- name: CountPendingOutbox :one
SELECT COUNT(*) FROM quiz_outbox WHERE sent_at IS NULL`

func (q *Queries) CountPendingOutbox(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPendingOutbox)
	var count int64
	err := row.Scan(&count)
	return count, err
}
