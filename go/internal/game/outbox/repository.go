package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eichdmk/ansar-quiz/go/internal/game/db"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/sqlutil"
	"github.com/google/uuid"
)

// ErrEventNotPending is returned when an event is missing or was already relayed.
var ErrEventNotPending = errors.New("outbox event not found or already sent")

type Repository struct {
	db      *sql.DB
	queries *db.Queries
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		db:      database,
		queries: db.New(database),
	}
}

// InsertEnvelopes stores a batch of envelopes atomically.
func (r *Repository) InsertEnvelopes(ctx context.Context, envs []events.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		for _, env := range envs {
			if err := q.InsertOutboxEvent(ctx, toInsertParams(env)); err != nil {
				return fmt.Errorf("insert %s outbox event: %w", env.EventType, err)
			}
		}
		return nil
	})
}

func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.queries.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox: %w", err)
	}
	out := make([]OutboxEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	row, err := r.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, ErrEventNotPending)
		}
		return nil, fmt.Errorf("fetch outbox event: %w", err)
	}
	ev := fromRow(row)
	return &ev, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("mark outbox event %s sent: %w", id, err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	return r.queries.CountPendingOutbox(ctx)
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
