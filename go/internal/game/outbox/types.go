package outbox

import (
	"context"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/db"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// NotifyChannel is the Postgres channel the quiz_outbox insert trigger notifies on.
const NotifyChannel = "quiz_outbox_events"

// OutboxEvent is one persisted broadcast waiting to be relayed.
type OutboxEvent struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	ParticipantID *uuid.UUID
	EventType     events.Type
	Payload       []byte
	CreatedAt     time.Time
	SentAt        *time.Time
}

// Envelope returns the wire form the broker and gateway understand.
func (e OutboxEvent) Envelope() events.Envelope {
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return events.Envelope{
		EventID:       e.ID,
		EventType:     e.EventType,
		SessionID:     e.SessionID,
		ParticipantID: e.ParticipantID,
		Timestamp:     e.CreatedAt.UTC(),
		Payload:       payload,
	}
}

// Publisher hands a relayed event to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event OutboxEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event OutboxEvent) error {
	return f(ctx, event)
}

func fromRow(row db.QuizOutbox) OutboxEvent {
	ev := OutboxEvent{
		ID:        row.ID,
		SessionID: row.SessionID,
		EventType: events.Type(row.EventType),
		CreatedAt: row.CreatedAt,
	}
	if row.ParticipantID.Valid {
		id := row.ParticipantID.UUID
		ev.ParticipantID = &id
	}
	if row.Payload.Valid {
		ev.Payload = row.Payload.RawMessage
	}
	if row.SentAt.Valid {
		t := row.SentAt.Time
		ev.SentAt = &t
	}
	return ev
}

func toInsertParams(env events.Envelope) db.InsertOutboxEventParams {
	params := db.InsertOutboxEventParams{
		ID:        env.EventID,
		SessionID: env.SessionID,
		EventType: string(env.EventType),
		CreatedAt: env.Timestamp,
		Payload:   pqtype.NullRawMessage{RawMessage: env.Payload, Valid: len(env.Payload) > 0},
	}
	if env.ParticipantID != nil {
		params.ParticipantID = uuid.NullUUID{UUID: *env.ParticipantID, Valid: true}
	}
	return params
}
