package session

import (
	"context"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/countdown"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/gametest"
	"github.com/eichdmk/ansar-quiz/go/internal/game/queue"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *gametest.Fixture, *countdown.Scheduler) {
	t.Helper()
	f := gametest.New(t)
	cd := countdown.NewScheduler(f.Clock, 3, time.Second)
	t.Cleanup(func() { _ = cd.Shutdown(context.Background()) })
	return NewApp(f.Store, f.Effects, cd, f.Clock, 30*time.Second, 30*time.Second), f, cd
}

func TestLifecycleHappyPath(t *testing.T) {
	app, f, _ := newTestApp(t)
	ctx := context.Background()
	s := f.Session(models.SessionStatusDraft)
	f.MultipleChoice(s.ID, 0, "a", "b")
	f.Verbal(s.ID)

	res, err := app.OpenSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusReady, res.Session.Status)

	res, err = app.StartSession(ctx, s.ID, 45*time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRunning, res.Session.Status)
	assert.Equal(t, 45, res.Session.QuestionDurationSec)
	assert.True(t, res.Session.IsQuestionClosed)
	require.NotNil(t, res.Session.StartedAt)

	res, err = app.AdvanceQuestion(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, res.Finished)
	assert.Equal(t, 1, res.Session.CurrentQuestionIndex)

	res, err = app.AdvanceQuestion(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.Equal(t, models.SessionStatusFinished, res.Session.Status)
	assert.NotNil(t, res.Session.FinishedAt)

	assert.Equal(t, []events.Type{
		events.TypeSessionOpened,
		events.TypeSessionStarted,
		events.TypeQuestionAdvanced,
		events.TypeSessionFinished,
	}, f.Recorder.Types())
}

func TestTransitionTable(t *testing.T) {
	type op func(app *App, id uuid.UUID) error
	ops := map[string]op{
		"open":    func(a *App, id uuid.UUID) error { _, err := a.OpenSession(context.Background(), id); return err },
		"close":   func(a *App, id uuid.UUID) error { _, err := a.CloseSession(context.Background(), id); return err },
		"start":   func(a *App, id uuid.UUID) error { _, err := a.StartSession(context.Background(), id, 0); return err },
		"restart": func(a *App, id uuid.UUID) error { _, err := a.RestartSession(context.Background(), id); return err },
		"advance": func(a *App, id uuid.UUID) error { _, err := a.AdvanceQuestion(context.Background(), id); return err },
		"stop":    func(a *App, id uuid.UUID) error { _, err := a.StopSession(context.Background(), id); return err },
	}

	tests := []struct {
		op   string
		from models.SessionStatus
		want apperrors.Kind
	}{
		{"open", models.SessionStatusDraft, ""},
		{"open", models.SessionStatusReady, apperrors.KindConflict},
		{"open", models.SessionStatusRunning, apperrors.KindConflict},
		{"open", models.SessionStatusFinished, apperrors.KindConflict},
		{"close", models.SessionStatusReady, ""},
		{"close", models.SessionStatusDraft, apperrors.KindConflict},
		{"close", models.SessionStatusRunning, apperrors.KindConflict},
		{"start", models.SessionStatusReady, ""},
		{"start", models.SessionStatusDraft, apperrors.KindConflict},
		{"start", models.SessionStatusRunning, apperrors.KindConflict},
		{"start", models.SessionStatusFinished, apperrors.KindConflict},
		{"restart", models.SessionStatusRunning, ""},
		{"restart", models.SessionStatusFinished, ""},
		{"restart", models.SessionStatusDraft, apperrors.KindConflict},
		{"restart", models.SessionStatusReady, apperrors.KindConflict},
		{"advance", models.SessionStatusRunning, ""},
		{"advance", models.SessionStatusReady, apperrors.KindConflict},
		{"stop", models.SessionStatusDraft, ""},
		{"stop", models.SessionStatusReady, ""},
		{"stop", models.SessionStatusRunning, ""},
		{"stop", models.SessionStatusFinished, ""},
	}
	for _, tt := range tests {
		t.Run(tt.op+"_from_"+string(tt.from), func(t *testing.T) {
			app, f, _ := newTestApp(t)
			s := f.Session(tt.from)
			f.MultipleChoice(s.ID, 0, "a", "b")
			f.MultipleChoice(s.ID, 1, "a", "b")

			err := ops[tt.op](app, s.ID)
			assert.Equal(t, tt.want, apperrors.KindOf(err))
			if tt.want != "" {
				assert.Equal(t, tt.from, f.Snapshot(s.ID).Status, "failed transition must not change state")
				assert.Empty(t, f.Recorder.Events())
			}
		})
	}
}

func TestTransitionsRequireQuestions(t *testing.T) {
	app, f, _ := newTestApp(t)
	ctx := context.Background()

	draft := f.Session(models.SessionStatusDraft)
	_, err := app.OpenSession(ctx, draft.ID)
	assert.Equal(t, apperrors.KindPreconditionFailed, apperrors.KindOf(err))

	ready := f.Session(models.SessionStatusReady)
	_, err = app.StartSession(ctx, ready.ID, 0)
	assert.Equal(t, apperrors.KindPreconditionFailed, apperrors.KindOf(err))

	finished := f.Session(models.SessionStatusFinished)
	_, err = app.RestartSession(ctx, finished.ID)
	assert.Equal(t, apperrors.KindPreconditionFailed, apperrors.KindOf(err))
}

func TestUnknownSession(t *testing.T) {
	app, _, _ := newTestApp(t)

	_, err := app.StopSession(context.Background(), uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = app.GetSession(context.Background(), uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAdvancePurgesQueue(t *testing.T) {
	app, f, _ := newTestApp(t)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	q1 := f.MultipleChoice(s.ID, 0, "a", "b")
	f.MultipleChoice(s.ID, 0, "a", "b")
	f.OpenQuestion(s.ID, 0)
	p1 := f.Participant(s.ID, "p1")
	p2 := f.Participant(s.ID, "p2")

	require.NoError(t, f.Store.InTx(ctx, func(tx store.Tx) error {
		for i, p := range []models.Participant{p1, p2} {
			if _, err := tx.InsertQueueEntry(ctx, models.QueueEntry{
				ID: uuid.New(), SessionID: s.ID, QuestionID: q1.ID, ParticipantID: p.ID,
				Position: i, IsActive: true, JoinedAt: f.Clock.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	}))
	require.Len(t, f.ActiveQueue(s.ID, q1.ID), 2)

	res, err := app.AdvanceQuestion(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.CurrentQuestionIndex)
	assert.True(t, res.Session.IsQuestionClosed)
	assert.Empty(t, f.ActiveQueue(s.ID, q1.ID))
}

func TestStopTwiceThenRestart(t *testing.T) {
	app, f, _ := newTestApp(t)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	f.MultipleChoice(s.ID, 0, "a", "b")
	p1 := f.Participant(s.ID, "p1")
	p2 := f.Participant(s.ID, "p2")
	require.NoError(t, f.Store.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.IncrementScore(ctx, p1.ID, 2)
		return err
	}))

	_, err := app.StopSession(ctx, s.ID)
	require.NoError(t, err)
	res, err := app.StopSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFinished, res.Session.Status)

	f.Recorder.Reset()
	res, err = app.RestartSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusReady, res.Session.Status)
	assert.Equal(t, 0, res.Session.CurrentQuestionIndex)
	assert.Nil(t, res.Session.StartedAt)
	assert.Nil(t, res.Session.FinishedAt)
	assert.Equal(t, 0, f.Score(p1.ID))
	assert.Equal(t, 0, f.Score(p2.ID))

	assert.Equal(t, []events.Type{
		events.TypeSessionClosed,
		events.TypeSessionOpened,
		events.TypeScoreUpdated,
		events.TypeScoreUpdated,
	}, f.Recorder.Types())
}

func waitForTicks(t *testing.T, f *gametest.Fixture, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.Recorder.OfType(events.TypeCountdownTick)) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func advanceClock(t *testing.T, f *gametest.Fixture) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Clock.BlockUntilContext(ctx, 1))
	f.Clock.Advance(time.Second)
}

func TestStartQuestionOpensAfterCountdown(t *testing.T) {
	app, f, cd := newTestApp(t)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	q := f.MultipleChoice(s.ID, 1, "a", "b")

	res, err := app.StartQuestion(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Preview)
	assert.Equal(t, q.ID, res.Preview.ID)
	assert.Len(t, res.Preview.Options, 2)

	for i := 1; i <= 3; i++ {
		waitForTicks(t, f, i)
		advanceClock(t, f)
	}
	require.Eventually(t, func() bool {
		return len(f.Recorder.OfType(events.TypeQuestionReady)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	var values []int
	for _, e := range f.Recorder.OfType(events.TypeCountdownTick) {
		values = append(values, e.Payload.(events.CountdownTickPayload).Value)
	}
	assert.Equal(t, []int{3, 2, 1, 0}, values)
	assert.False(t, f.Snapshot(s.ID).IsQuestionClosed)
	require.Eventually(t, func() bool { return !cd.Pending(s.ID) }, time.Second, 5*time.Millisecond)

	_, err = app.StartQuestion(ctx, s.ID)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err), "question already open")
}

func TestStopCancelsCountdown(t *testing.T) {
	app, f, cd := newTestApp(t)
	ctx := context.Background()
	s := f.Session(models.SessionStatusRunning)
	f.MultipleChoice(s.ID, 0, "a", "b")

	_, err := app.StartQuestion(ctx, s.ID)
	require.NoError(t, err)
	waitForTicks(t, f, 1)

	_, err = app.StopSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, cd.Pending(s.ID))

	f.Clock.Advance(5 * time.Second)
	require.NoError(t, cd.Shutdown(ctx))

	assert.Empty(t, f.Recorder.OfType(events.TypeQuestionReady))
	assert.Len(t, f.Recorder.OfType(events.TypeCountdownTick), 1)
	snap := f.Snapshot(s.ID)
	assert.Equal(t, models.SessionStatusFinished, snap.Status)
	assert.True(t, snap.IsQuestionClosed)
}

func TestStartQuestionRequiresRunningSession(t *testing.T) {
	app, f, _ := newTestApp(t)
	s := f.Session(models.SessionStatusReady)
	f.MultipleChoice(s.ID, 0, "a", "b")

	_, err := app.StartQuestion(context.Background(), s.ID)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRestartClearsPreviousGrades(t *testing.T) {
	app, f, _ := newTestApp(t)
	ctx := context.Background()
	turns := queue.NewApp(f.Store, f.Effects, f.Clock, 10*time.Second)
	s := f.Session(models.SessionStatusRunning)
	q := f.Verbal(s.ID)
	p := f.Participant(s.ID, "p1")

	playRound := func() *queue.EvaluateResult {
		t.Helper()
		f.OpenQuestion(s.ID, 0)
		turn, err := turns.RequestTurn(ctx, p.ID, s.ID)
		require.NoError(t, err)
		require.True(t, turn.Assigned)

		line := f.ActiveQueue(s.ID, q.ID)
		require.Len(t, line, 1)
		assert.Nil(t, line[0].IsCorrect, "no grade before the answer")

		_, err = turns.SubmitAnswer(ctx, queue.SubmitRequest{ParticipantID: p.ID, QuestionID: q.ID})
		require.NoError(t, err)
		res, err := turns.EvaluateAnswer(ctx, queue.EvaluateRequest{ParticipantID: p.ID, QuestionID: q.ID, IsCorrect: true})
		require.NoError(t, err)
		return res
	}

	assert.True(t, playRound().Awarded)
	assert.Equal(t, 1, f.Score(p.ID))

	_, err := app.RestartSession(ctx, s.ID)
	require.NoError(t, err)
	_, err = app.StartSession(ctx, s.ID, 0)
	require.NoError(t, err)

	assert.True(t, playRound().Awarded)
	assert.Equal(t, 1, f.Score(p.ID))
}
