package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names a broadcast event. Values double as the last NATS subject token.
type Type string

const (
	TypeSessionOpened   Type = "SessionOpened"
	TypeSessionClosed   Type = "SessionClosed"
	TypeSessionStarted  Type = "SessionStarted"
	TypeSessionStopped  Type = "SessionStopped"
	TypeSessionFinished Type = "SessionFinished"

	TypeQuestionAdvanced Type = "QuestionAdvanced"
	TypeCountdownTick    Type = "CountdownTick"
	TypeQuestionReady    Type = "QuestionReady"
	TypeQuestionAssigned Type = "QuestionAssigned"
	TypeQuestionClosed   Type = "QuestionClosed"
	TypeQueueUpdated     Type = "QueueUpdated"

	TypeAnswerSubmitted Type = "AnswerSubmitted"
	TypeAnswerEvaluated Type = "AnswerEvaluated"
	TypeScoreUpdated    Type = "ScoreUpdated"

	TypeParticipantJoined  Type = "ParticipantJoined"
	TypeParticipantLeft    Type = "ParticipantLeft"
	TypeParticipantSkipped Type = "ParticipantSkipped"
)

// Known lists every event type clients may receive.
var Known = []Type{
	TypeSessionOpened, TypeSessionClosed, TypeSessionStarted, TypeSessionStopped, TypeSessionFinished,
	TypeQuestionAdvanced, TypeCountdownTick, TypeQuestionReady, TypeQuestionAssigned, TypeQuestionClosed,
	TypeQueueUpdated, TypeAnswerSubmitted, TypeAnswerEvaluated, TypeScoreUpdated,
	TypeParticipantJoined, TypeParticipantLeft, TypeParticipantSkipped,
}

const (
	StreamName    = "QUIZ_EVENTS"
	SubjectPrefix = "quiz.events"
)

// Subject returns the NATS subject an event type is published on.
func Subject(prefix string, t Type) string {
	return fmt.Sprintf("%s.%s", prefix, t)
}

// Event is a state change to announce once the owning transaction has committed.
// ParticipantID is set for events aimed at one participant; delivery is still room-wide.
type Event struct {
	Type          Type
	SessionID     uuid.UUID
	ParticipantID *uuid.UUID
	Payload       any
}

// Broadcaster fans events out to connected clients. Delivery is best-effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, evs ...Event) error
}

// Envelope is the wire form shared by the outbox relay, the broker and the websocket gateway.
type Envelope struct {
	EventID       uuid.UUID       `json:"eventId"`
	EventType     Type            `json:"eventType"`
	SessionID     uuid.UUID       `json:"sessionId"`
	ParticipantID *uuid.UUID      `json:"participantId,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope marshals e's payload into a wire envelope.
func NewEnvelope(id uuid.UUID, e Event, at time.Time) (Envelope, error) {
	payload, err := MarshalPayload(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       id,
		EventType:     e.Type,
		SessionID:     e.SessionID,
		ParticipantID: e.ParticipantID,
		Timestamp:     at.UTC(),
		Payload:       payload,
	}, nil
}

// MarshalPayload encodes e.Payload, using an empty object for nil payloads.
func MarshalPayload(e Event) (json.RawMessage, error) {
	if e.Payload == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return data, nil
}

func ParticipantRef(id uuid.UUID) *uuid.UUID {
	return &id
}
