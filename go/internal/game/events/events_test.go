package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeWireShape(t *testing.T) {
	id, session, participant := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	env, err := NewEnvelope(id, Event{
		Type:          TypeScoreUpdated,
		SessionID:     session,
		ParticipantID: ParticipantRef(participant),
		Payload:       ScoreUpdatedPayload{SessionID: session, ParticipantID: participant, Score: 3},
	}, at)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, id.String(), wire["eventId"])
	assert.Equal(t, "ScoreUpdated", wire["eventType"])
	assert.Equal(t, participant.String(), wire["participantId"])
	assert.Equal(t, "2026-03-01T07:00:00Z", wire["timestamp"])
	assert.Equal(t, float64(3), wire["payload"].(map[string]any)["score"])
}

func TestNilPayloadIsEmptyObject(t *testing.T) {
	env, err := NewEnvelope(uuid.New(), Event{Type: TypeSessionClosed, SessionID: uuid.New()}, time.Now())
	require.NoError(t, err)

	assert.JSONEq(t, `{}`, string(env.Payload))
	assert.Nil(t, env.ParticipantID)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "quiz.events.QuestionReady", Subject(SubjectPrefix, TypeQuestionReady))
}
