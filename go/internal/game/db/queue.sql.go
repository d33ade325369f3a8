package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const queueEntryColumns = `id, session_id, question_id, participant_id, position, is_active, joined_at`

func scanQueueEntry(row interface{ Scan(...any) error }) (QueueEntry, error) {
	var i QueueEntry
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.QuestionID,
		&i.ParticipantID,
		&i.Position,
		&i.IsActive,
		&i.JoinedAt,
	)
	return i, err
}

const getActiveEntry = `-- name: GetActiveEntry :one
SELECT ` + queueEntryColumns + `
FROM queue_entries
WHERE session_id = $1 AND question_id = $2 AND participant_id = $3 AND is_active
LIMIT 1`

func (q *Queries) GetActiveEntry(ctx context.Context, sessionID, questionID, participantID uuid.UUID) (QueueEntry, error) {
	row := q.db.QueryRowContext(ctx, getActiveEntry, sessionID, questionID, participantID)
	return scanQueueEntry(row)
}

const getQueueHead = `-- name: GetQueueHead :one
SELECT ` + queueEntryColumns + `
FROM queue_entries
WHERE session_id = $1 AND question_id = $2 AND is_active
ORDER BY position ASC, joined_at ASC
LIMIT 1`

// GetQueueHead resolves the entry currently holding the turn.
func (q *Queries) GetQueueHead(ctx context.Context, sessionID, questionID uuid.UUID) (QueueEntry, error) {
	row := q.db.QueryRowContext(ctx, getQueueHead, sessionID, questionID)
	return scanQueueEntry(row)
}

const countActiveEntries = `-- name: CountActiveEntries :one
SELECT COUNT(*) FROM queue_entries
WHERE session_id = $1 AND question_id = $2 AND is_active`

func (q *Queries) CountActiveEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countActiveEntries, sessionID, questionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const nextQueuePosition = `-- name: NextQueuePosition :one
SELECT COALESCE(MAX(position), -1) + 1 FROM queue_entries
WHERE session_id = $1 AND question_id = $2`

func (q *Queries) NextQueuePosition(ctx context.Context, sessionID, questionID uuid.UUID) (int32, error) {
	row := q.db.QueryRowContext(ctx, nextQueuePosition, sessionID, questionID)
	var position int32
	err := row.Scan(&position)
	return position, err
}

const insertQueueEntry = `-- name: InsertQueueEntry :one
INSERT INTO queue_entries (id, session_id, question_id, participant_id, position, is_active, joined_at)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)
RETURNING ` + queueEntryColumns

type InsertQueueEntryParams struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	QuestionID    uuid.UUID
	ParticipantID uuid.UUID
	Position      int32
	JoinedAt      time.Time
}

func (q *Queries) InsertQueueEntry(ctx context.Context, arg InsertQueueEntryParams) (QueueEntry, error) {
	row := q.db.QueryRowContext(ctx, insertQueueEntry,
		arg.ID,
		arg.SessionID,
		arg.QuestionID,
		arg.ParticipantID,
		arg.Position,
		arg.JoinedAt,
	)
	return scanQueueEntry(row)
}

const deactivateEntry = `-- name: DeactivateEntry :execrows
UPDATE queue_entries SET is_active = FALSE WHERE id = $1 AND is_active`

func (q *Queries) DeactivateEntry(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deactivateEntry, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deactivateQuestionEntries = `-- name: DeactivateQuestionEntries :execrows
UPDATE queue_entries SET is_active = FALSE
WHERE session_id = $1 AND question_id = $2 AND is_active`

func (q *Queries) DeactivateQuestionEntries(ctx context.Context, sessionID, questionID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deactivateQuestionEntries, sessionID, questionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteQueueForSession = `-- name: DeleteQueueForSession :execrows
DELETE FROM queue_entries WHERE session_id = $1`

func (q *Queries) DeleteQueueForSession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteQueueForSession, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listParticipantActiveEntries = `-- name: ListParticipantActiveEntries :many
SELECT ` + queueEntryColumns + `
FROM queue_entries
WHERE participant_id = $1 AND is_active`

func (q *Queries) ListParticipantActiveEntries(ctx context.Context, participantID uuid.UUID) ([]QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, listParticipantActiveEntries, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QueueEntry
	for rows.Next() {
		i, err := scanQueueEntry(rows)
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

const listActiveQueue = `-- name: ListActiveQueue :many
SELECT e.id, e.participant_id, e.position, e.joined_at,
       p.username, p.group_name, p.score,
       COALESCE(a.is_correct, v.is_correct)     AS is_correct,
       (v.id IS NOT NULL AND v.is_correct IS NULL) AS waiting_for_evaluation
FROM queue_entries e
JOIN participants p ON p.id = e.participant_id
LEFT JOIN answer_records a ON a.participant_id = e.participant_id AND a.question_id = e.question_id
LEFT JOIN verbal_responses v ON v.participant_id = e.participant_id AND v.question_id = e.question_id
WHERE e.session_id = $1 AND e.question_id = $2 AND e.is_active
ORDER BY e.position ASC, e.joined_at ASC`

type ListActiveQueueRow struct {
	ID                   uuid.UUID
	ParticipantID        uuid.UUID
	Position             int32
	JoinedAt             time.Time
	Username             string
	GroupName            sql.NullString
	Score                int32
	IsCorrect            sql.NullBool
	WaitingForEvaluation bool
}

func (q *Queries) ListActiveQueue(ctx context.Context, sessionID, questionID uuid.UUID) ([]ListActiveQueueRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveQueue, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListActiveQueueRow
	for rows.Next() {
		var i ListActiveQueueRow
		if err := rows.Scan(
			&i.ID,
			&i.ParticipantID,
			&i.Position,
			&i.JoinedAt,
			&i.Username,
			&i.GroupName,
			&i.Score,
			&i.IsCorrect,
			&i.WaitingForEvaluation,
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

const countEntriesAhead = `-- name: CountEntriesAhead :one
SELECT COUNT(*) FROM queue_entries
WHERE session_id = $1 AND question_id = $2 AND is_active
  AND (position < $3 OR (position = $3 AND joined_at < $4))`

type CountEntriesAheadParams struct {
	SessionID  uuid.UUID
	QuestionID uuid.UUID
	Position   int32
	JoinedAt   time.Time
}

func (q *Queries) CountEntriesAhead(ctx context.Context, arg CountEntriesAheadParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEntriesAhead,
		arg.SessionID,
		arg.QuestionID,
		arg.Position,
		arg.JoinedAt,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}
