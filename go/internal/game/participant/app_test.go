package participant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/cache"
	"github.com/eichdmk/ansar-quiz/go/internal/game/effects"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/gametest"
	"github.com/eichdmk/ansar-quiz/go/internal/game/queue"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApps(t *testing.T, f *gametest.Fixture) (*App, *queue.App) {
	t.Helper()
	q := queue.NewApp(f.Store, f.Effects, f.Clock, 10*time.Second)
	return NewApp(f.Store, f.Effects, q, f.Clock, 30*time.Second), q
}

func TestJoinGuards(t *testing.T) {
	f := gametest.New(t)
	app, _ := newApps(t, f)
	ctx := context.Background()

	tests := []struct {
		status models.SessionStatus
		want   apperrors.Kind
	}{
		{models.SessionStatusDraft, apperrors.KindConflict},
		{models.SessionStatusReady, ""},
		{models.SessionStatusRunning, ""},
		{models.SessionStatusFinished, apperrors.KindConflict},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			s := f.Session(tt.status)
			f.MultipleChoice(s.ID, 0, "A", "B")

			res, err := app.Join(ctx, JoinRequest{SessionID: s.ID, Username: "  Amina  "})
			assert.Equal(t, tt.want, apperrors.KindOf(err))
			if tt.want == "" {
				assert.Equal(t, "Amina", res.Participant.Username)
				assert.Equal(t, tt.status == models.SessionStatusRunning, res.Question != nil)
			}
		})
	}

	s := f.Session(models.SessionStatusReady)
	_, err := app.Join(ctx, JoinRequest{SessionID: s.ID, Username: "   "})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestLeavePassesTurn(t *testing.T) {
	f := gametest.New(t)
	app, q := newApps(t, f)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	question := f.MultipleChoice(s.ID, 0, "A", "B")
	f.OpenQuestion(s.ID, 0)
	p1 := f.Participant(s.ID, "p1")
	p2 := f.Participant(s.ID, "p2")
	_, err := q.RequestTurn(ctx, p1.ID, s.ID)
	require.NoError(t, err)
	f.Clock.Advance(time.Millisecond)
	_, err = q.RequestTurn(ctx, p2.ID, s.ID)
	require.NoError(t, err)

	f.Recorder.Reset()
	require.NoError(t, app.Leave(ctx, p1.ID))

	queueNow := f.ActiveQueue(s.ID, question.ID)
	require.Len(t, queueNow, 1)
	assert.Equal(t, p2.ID, queueNow[0].ParticipantID)

	assigned := f.Recorder.OfType(events.TypeQuestionAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, p2.ID, *assigned[0].ParticipantID)
	assert.Len(t, f.Recorder.OfType(events.TypeParticipantLeft), 1)

	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(app.Leave(ctx, p1.ID)))
}

func TestListIsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f := gametest.New(t)
	f.Effects = effects.NewRunner(cache.NewRedisCache(client), f.Recorder)
	app, _ := newApps(t, f)
	ctx := context.Background()
	s := f.Session(models.SessionStatusReady)

	_, err := app.Join(ctx, JoinRequest{SessionID: s.ID, Username: "first"})
	require.NoError(t, err)
	roster, err := app.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.True(t, mr.Exists(cache.RosterKey(s.ID)))

	_, err = app.Join(ctx, JoinRequest{SessionID: s.ID, Username: "second"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.RosterKey(s.ID)), "join invalidates the roster")

	roster, err = app.List(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}

func TestSetScore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f := gametest.New(t)
	f.Effects = effects.NewRunner(cache.NewRedisCache(client), f.Recorder)
	app, _ := newApps(t, f)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	low := f.Participant(s.ID, "low")
	high := f.Participant(s.ID, "high")

	_, err := app.List(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.RosterKey(s.ID)))

	p, err := app.SetScore(ctx, low.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Score)
	assert.False(t, mr.Exists(cache.RosterKey(s.ID)), "score change invalidates the roster")

	updates := f.Recorder.OfType(events.TypeScoreUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, events.ScoreUpdatedPayload{SessionID: s.ID, ParticipantID: low.ID, Score: 5}, updates[0].Payload)

	roster, err := app.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, low.ID, roster[0].ID)
	assert.Equal(t, high.ID, roster[1].ID)

	_, err = app.SetScore(ctx, low.ID, -1)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	_, err = app.SetScore(ctx, uuid.New(), 1)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, 5, f.Score(low.ID))
}
