package projection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/gametest"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enqueue(t *testing.T, f *gametest.Fixture, s models.Session, q models.Question, ps ...models.Participant) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.Store.InTx(ctx, func(tx store.Tx) error {
		for i, p := range ps {
			f.Clock.Advance(time.Millisecond)
			if _, err := tx.InsertQueueEntry(ctx, models.QueueEntry{
				ID: uuid.New(), SessionID: s.ID, QuestionID: q.ID, ParticipantID: p.ID,
				Position: i, IsActive: true, JoinedAt: f.Clock.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestCurrentQuestionForParticipants(t *testing.T) {
	f := gametest.New(t)
	app := NewApp(f.Store)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	q := f.MultipleChoice(s.ID, 1, "A", "B", "C")
	f.OpenQuestion(s.ID, 0)
	p1 := f.Participant(s.ID, "p1")
	p2 := f.Participant(s.ID, "p2")
	p3 := f.Participant(s.ID, "p3")
	enqueue(t, f, s, q, p1, p2)

	state, err := app.GetCurrentQuestion(ctx, s.ID, &p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRunning, state.Status)
	assert.False(t, state.Finished)
	assert.Equal(t, 1, state.TotalQuestions)
	require.NotNil(t, state.Question)
	assert.Equal(t, q.ID, state.Question.ID)
	assert.Len(t, state.Question.Options, 3)
	assert.True(t, state.Participant.InQueue)
	assert.True(t, state.Participant.HasQuestion)
	assert.Equal(t, 1, *state.Participant.Position)

	state, err = app.GetCurrentQuestion(ctx, s.ID, &p2.ID)
	require.NoError(t, err)
	assert.True(t, state.Participant.InQueue)
	assert.False(t, state.Participant.HasQuestion)
	assert.Equal(t, 2, *state.Participant.Position)

	state, err = app.GetCurrentQuestion(ctx, s.ID, &p3.ID)
	require.NoError(t, err)
	assert.False(t, state.Participant.InQueue)
	assert.Nil(t, state.Participant.Position)

	state, err = app.GetCurrentQuestion(ctx, s.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, state.Participant)
}

func TestCurrentQuestionHidesAnswerKey(t *testing.T) {
	f := gametest.New(t)
	s := f.Session(models.SessionStatusRunning)
	f.MultipleChoice(s.ID, 0, "A", "B")

	state, err := NewApp(f.Store).GetCurrentQuestion(context.Background(), s.ID, nil)
	require.NoError(t, err)

	data, err := json.Marshal(state)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "is_correct")
}

func TestCurrentQuestionOutsideRunning(t *testing.T) {
	f := gametest.New(t)
	app := NewApp(f.Store)
	ctx := context.Background()

	ready := f.Session(models.SessionStatusReady)
	f.MultipleChoice(ready.ID, 0, "A", "B")
	state, err := app.GetCurrentQuestion(ctx, ready.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, state.Question)
	assert.False(t, state.Finished)

	finished := f.Session(models.SessionStatusFinished)
	state, err = app.GetCurrentQuestion(ctx, finished.ID, nil)
	require.NoError(t, err)
	assert.True(t, state.Finished)

	_, err = app.GetCurrentQuestion(ctx, uuid.New(), nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCursorPastEndReportsFinished(t *testing.T) {
	f := gametest.New(t)
	s := f.Session(models.SessionStatusRunning)
	f.MultipleChoice(s.ID, 0, "A", "B")
	f.OpenQuestion(s.ID, 1)

	state, err := NewApp(f.Store).GetCurrentQuestion(context.Background(), s.ID, nil)
	require.NoError(t, err)
	assert.True(t, state.Finished)
	assert.Nil(t, state.Question)
}

func TestStateHandler(t *testing.T) {
	f := gametest.New(t)
	s := f.Session(models.SessionStatusRunning)
	f.MultipleChoice(s.ID, 0, "A", "B")

	mux := http.NewServeMux()
	mux.Handle("GET /sessions/{id}/state", StateHandler(NewApp(f.Store)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sessions/" + s.ID.String() + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var state CurrentState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, s.ID, state.SessionID)

	missing, err := http.Get(srv.URL + "/sessions/" + uuid.NewString() + "/state")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, "not_found", missing.Header.Get("Error-Kind"))

	bad, err := http.Get(srv.URL + "/sessions/nope/state?participant_id=x")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}
