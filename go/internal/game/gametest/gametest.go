// Package gametest holds fixtures shared by the game package tests.
package gametest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/effects"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store/memstore"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// Recorder is a Broadcaster that keeps everything it is given.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Broadcast(_ context.Context, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return nil
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *Recorder) Types() []events.Type {
	evs := r.Events()
	out := make([]events.Type, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

// OfType returns the recorded events of type t, oldest first.
func (r *Recorder) OfType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Fixture is an in-memory store with a recording broadcaster and a fake clock.
type Fixture struct {
	t        testing.TB
	Store    *memstore.Store
	Recorder *Recorder
	Effects  *effects.Runner
	Clock    *clockwork.FakeClock
}

func New(t testing.TB) *Fixture {
	rec := &Recorder{}
	return &Fixture{
		t:        t,
		Store:    memstore.New(),
		Recorder: rec,
		Effects:  effects.NewRunner(nil, rec),
		Clock:    clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
	}
}

func (f *Fixture) tx(fn func(tx store.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.Store.InTx(context.Background(), fn))
}

// Session creates a session in the given status. Running sessions start on question 0, closed.
func (f *Fixture) Session(status models.SessionStatus) models.Session {
	f.t.Helper()
	s := models.Session{
		ID:                  uuid.New(),
		Name:                "Quiz night",
		Status:              status,
		IsQuestionClosed:    true,
		QuestionDurationSec: 30,
		CreatedAt:           f.Clock.Now(),
	}
	if status == models.SessionStatusRunning {
		started := f.Clock.Now()
		s.StartedAt = &started
	}
	var out models.Session
	f.tx(func(tx store.Tx) error {
		created, err := tx.CreateSession(context.Background(), s)
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out
}

// OpenQuestion points the session at index and opens it for answers.
func (f *Fixture) OpenQuestion(sessionID uuid.UUID, index int) {
	f.t.Helper()
	f.tx(func(tx store.Tx) error {
		s, err := tx.LockSession(context.Background(), sessionID)
		if err != nil {
			return err
		}
		s.Status = models.SessionStatusRunning
		s.CurrentQuestionIndex = index
		s.IsQuestionClosed = false
		_, err = tx.UpdateSessionLifecycle(context.Background(), *s)
		return err
	})
}

// MultipleChoice appends a question whose option at index correct is the right one.
func (f *Fixture) MultipleChoice(sessionID uuid.UUID, correct int, options ...string) models.Question {
	f.t.Helper()
	q := models.Question{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Text:         fmt.Sprintf("question %s", uuid.NewString()[:8]),
		QuestionType: models.QuestionTypeMultipleChoice,
		CreatedAt:    f.Clock.Now(),
	}
	for i, text := range options {
		q.Options = append(q.Options, models.AnswerOption{ID: uuid.New(), Text: text, IsCorrect: i == correct})
	}
	return f.question(q)
}

func (f *Fixture) Verbal(sessionID uuid.UUID) models.Question {
	f.t.Helper()
	return f.question(models.Question{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Text:         "name the capital",
		QuestionType: models.QuestionTypeVerbal,
		CreatedAt:    f.Clock.Now(),
	})
}

func (f *Fixture) question(q models.Question) models.Question {
	f.t.Helper()
	var out models.Question
	f.tx(func(tx store.Tx) error {
		created, err := tx.CreateQuestion(context.Background(), q)
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out
}

// Participant joins a player. The clock moves forward so join order is strict.
func (f *Fixture) Participant(sessionID uuid.UUID, name string) models.Participant {
	f.t.Helper()
	f.Clock.Advance(time.Millisecond)
	var out models.Participant
	f.tx(func(tx store.Tx) error {
		created, err := tx.CreateParticipant(context.Background(), models.Participant{
			ID:        uuid.New(),
			SessionID: sessionID,
			Username:  name,
			JoinedAt:  f.Clock.Now(),
		})
		if err != nil {
			return err
		}
		out = *created
		return nil
	})
	return out
}

// Snapshot reads the committed state of a session.
func (f *Fixture) Snapshot(sessionID uuid.UUID) models.Session {
	f.t.Helper()
	var out models.Session
	require.NoError(f.t, f.Store.View(context.Background(), func(tx store.Tx) error {
		s, err := tx.GetSession(context.Background(), sessionID)
		if err != nil {
			return err
		}
		out = *s
		return nil
	}))
	return out
}

func (f *Fixture) Score(participantID uuid.UUID) int {
	f.t.Helper()
	var score int
	require.NoError(f.t, f.Store.View(context.Background(), func(tx store.Tx) error {
		p, err := tx.GetParticipant(context.Background(), participantID)
		if err != nil {
			return err
		}
		score = p.Score
		return nil
	}))
	return score
}

// ActiveQueue returns the active entries for a question in head-first order.
func (f *Fixture) ActiveQueue(sessionID, questionID uuid.UUID) []models.QueueEntryView {
	f.t.Helper()
	var out []models.QueueEntryView
	require.NoError(f.t, f.Store.View(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.ListActiveQueue(context.Background(), sessionID, questionID)
		return err
	}))
	return out
}
