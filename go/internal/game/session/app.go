package session

import (
	"context"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/cache"
	"github.com/eichdmk/ansar-quiz/go/internal/game/countdown"
	"github.com/eichdmk/ansar-quiz/go/internal/game/effects"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TransitionResult is the session as committed by a transition.
type TransitionResult struct {
	Session  models.Session       `json:"session"`
	Finished bool                 `json:"finished"`
	Preview  *models.QuestionView `json:"preview,omitempty"`
}

// App is the session state machine. Every mutation locks the session row for one transaction.
type App struct {
	store           store.Store
	fx              *effects.Runner
	countdown       *countdown.Scheduler
	clock           clockwork.Clock
	defaultDuration time.Duration
	snapshotTTL     time.Duration
}

func NewApp(s store.Store, fx *effects.Runner, cd *countdown.Scheduler, clock clockwork.Clock, defaultDuration, snapshotTTL time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		store:           s,
		fx:              fx,
		countdown:       cd,
		clock:           clock,
		defaultDuration: defaultDuration,
		snapshotTTL:     snapshotTTL,
	}
}

// GetSession returns the session snapshot, read through the cache.
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := cache.Cached(ctx, a.fx.Cache(), cache.SessionKey(id), a.snapshotTTL, func(ctx context.Context) (models.Session, error) {
		var out models.Session
		err := a.store.View(ctx, func(tx store.Tx) error {
			s, err := tx.GetSession(ctx, id)
			if err != nil {
				return store.Translate(err, "session")
			}
			out = *s
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// OpenSession moves a draft session to ready.
func (a *App) OpenSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	return a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		if err := validateTransition(transitionOpen, s.Status); err != nil {
			return nil, err
		}
		if err := requireQuestions(ctx, tx, s.ID); err != nil {
			return nil, err
		}
		a.countdown.Cancel(s.ID)

		s.Status = models.SessionStatusReady
		s.CurrentQuestionIndex = 0
		s.IsQuestionClosed = true
		updated, err := a.save(ctx, tx, *s)
		if err != nil {
			return nil, err
		}
		fx.Emit(a.lifecycleEvent(events.TypeSessionOpened, *updated))
		return &TransitionResult{Session: *updated}, nil
	})
}

// CloseSession moves a ready session back to draft.
func (a *App) CloseSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	return a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		if err := validateTransition(transitionClose, s.Status); err != nil {
			return nil, err
		}
		a.countdown.Cancel(s.ID)

		s.Status = models.SessionStatusDraft
		s.CurrentQuestionIndex = 0
		s.IsQuestionClosed = true
		updated, err := a.save(ctx, tx, *s)
		if err != nil {
			return nil, err
		}
		fx.Emit(a.lifecycleEvent(events.TypeSessionClosed, *updated))
		return &TransitionResult{Session: *updated}, nil
	})
}

// StartSession moves a ready session to running. The first question still needs StartQuestion.
// A zero duration keeps the configured default.
func (a *App) StartSession(ctx context.Context, id uuid.UUID, duration time.Duration) (*TransitionResult, error) {
	if duration < 0 {
		return nil, apperrors.InvalidInput("question duration must not be negative")
	}
	if duration == 0 {
		duration = a.defaultDuration
	}
	return a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		if err := validateTransition(transitionStart, s.Status); err != nil {
			return nil, err
		}
		if err := requireQuestions(ctx, tx, s.ID); err != nil {
			return nil, err
		}
		a.countdown.Cancel(s.ID)

		now := a.clock.Now().UTC()
		s.Status = models.SessionStatusRunning
		s.CurrentQuestionIndex = 0
		s.IsQuestionClosed = true
		s.QuestionDurationSec = int(duration / time.Second)
		s.StartedAt = &now
		s.FinishedAt = nil
		updated, err := a.save(ctx, tx, *s)
		if err != nil {
			return nil, err
		}
		fx.Emit(a.lifecycleEvent(events.TypeSessionStarted, *updated))
		return &TransitionResult{Session: *updated}, nil
	})
}

// StopSession finishes the session from any state.
func (a *App) StopSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	return a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		a.countdown.Cancel(s.ID)

		if err := a.purgeQueue(ctx, tx, fx, s.ID); err != nil {
			return nil, err
		}
		now := a.clock.Now().UTC()
		s.Status = models.SessionStatusFinished
		s.CurrentQuestionIndex = 0
		s.IsQuestionClosed = true
		s.FinishedAt = &now
		updated, err := a.save(ctx, tx, *s)
		if err != nil {
			return nil, err
		}
		fx.Emit(a.lifecycleEvent(events.TypeSessionStopped, *updated))
		return &TransitionResult{Session: *updated, Finished: true}, nil
	})
}

// RestartSession returns a running or finished session to ready and zeroes every score.
func (a *App) RestartSession(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	return a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		if err := validateTransition(transitionRestart, s.Status); err != nil {
			return nil, err
		}
		if err := requireQuestions(ctx, tx, s.ID); err != nil {
			return nil, err
		}
		a.countdown.Cancel(s.ID)

		if err := a.purgeQueue(ctx, tx, fx, s.ID); err != nil {
			return nil, err
		}
		if err := tx.ResetScores(ctx, s.ID); err != nil {
			return nil, store.Translate(err, "reset scores")
		}
		// A new run grades every question afresh.
		if _, err := tx.DeleteAnswersForSession(ctx, s.ID); err != nil {
			return nil, store.Translate(err, "clear answers")
		}
		players, err := tx.ListParticipants(ctx, s.ID)
		if err != nil {
			return nil, store.Translate(err, "participants")
		}

		s.Status = models.SessionStatusReady
		s.CurrentQuestionIndex = 0
		s.IsQuestionClosed = true
		s.StartedAt = nil
		s.FinishedAt = nil
		updated, err := a.save(ctx, tx, *s)
		if err != nil {
			return nil, err
		}

		fx.Emit(
			a.lifecycleEvent(events.TypeSessionClosed, *updated),
			a.lifecycleEvent(events.TypeSessionOpened, *updated),
		)
		for _, p := range players {
			fx.Emit(events.Event{
				Type:          events.TypeScoreUpdated,
				SessionID:     s.ID,
				ParticipantID: events.ParticipantRef(p.ID),
				Payload:       events.ScoreUpdatedPayload{SessionID: s.ID, ParticipantID: p.ID, Score: p.Score},
			})
		}
		return &TransitionResult{Session: *updated}, nil
	})
}

// AdvanceQuestion moves the cursor to the next question, finishing the session past the last one.
// Queue entries never carry over to the next question.
func (a *App) AdvanceQuestion(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	return a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		if err := validateTransition(transitionAdvance, s.Status); err != nil {
			return nil, err
		}
		total, err := tx.CountQuestions(ctx, s.ID)
		if err != nil {
			return nil, store.Translate(err, "questions")
		}
		a.countdown.Cancel(s.ID)

		if err := a.purgeQueue(ctx, tx, fx, s.ID); err != nil {
			return nil, err
		}

		next := s.CurrentQuestionIndex + 1
		finished := next >= total
		s.IsQuestionClosed = true
		if finished {
			now := a.clock.Now().UTC()
			s.Status = models.SessionStatusFinished
			s.FinishedAt = &now
		} else {
			s.CurrentQuestionIndex = next
		}
		updated, err := a.save(ctx, tx, *s)
		if err != nil {
			return nil, err
		}

		if finished {
			fx.Emit(a.lifecycleEvent(events.TypeSessionFinished, *updated))
		} else {
			fx.Emit(events.Event{
				Type:      events.TypeQuestionAdvanced,
				SessionID: s.ID,
				Payload: events.QuestionAdvancedPayload{
					SessionID:            s.ID,
					CurrentQuestionIndex: updated.CurrentQuestionIndex,
				},
			})
		}
		return &TransitionResult{Session: *updated, Finished: finished}, nil
	})
}

// StartQuestion arms the countdown for the current question. The question opens for answers
// when the countdown completes.
func (a *App) StartQuestion(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	var questionID uuid.UUID
	res, err := a.transition(ctx, id, func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error) {
		if s.Status != models.SessionStatusRunning {
			return nil, apperrors.Conflict("session is %s, not running", s.Status)
		}
		if !s.IsQuestionClosed {
			return nil, apperrors.Conflict("question is already open")
		}
		q, err := tx.GetQuestionByIndex(ctx, s.ID, s.CurrentQuestionIndex)
		if err != nil {
			return nil, store.Translate(err, "current question")
		}
		a.countdown.Cancel(s.ID)

		questionID = q.ID
		view := q.View()
		return &TransitionResult{Session: *s, Preview: &view}, nil
	})
	if err != nil {
		return nil, err
	}

	a.countdown.Start(id, questionID, countdown.Hooks{
		OnTick:     a.onCountdownTick,
		OnComplete: a.onCountdownComplete,
	})
	return res, nil
}

func (a *App) onCountdownTick(ctx context.Context, c countdown.Chain, value int) {
	a.fx.Broadcast(ctx, events.Event{
		Type:      events.TypeCountdownTick,
		SessionID: c.SessionID,
		Payload: events.CountdownTickPayload{
			SessionID:  c.SessionID,
			QuestionID: c.QuestionID,
			Value:      value,
			TickedAt:   a.clock.Now().UTC(),
		},
	})
}

// onCountdownComplete opens the question, unless the session moved on while the countdown ran.
func (a *App) onCountdownComplete(ctx context.Context, c countdown.Chain) {
	logger := log.With().
		Str("session_id", c.SessionID.String()).
		Str("question_id", c.QuestionID.String()).
		Logger()

	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		s, err := tx.LockSession(ctx, c.SessionID)
		if err != nil {
			return store.Translate(err, "session")
		}
		if !a.countdown.Current(c) {
			logger.Debug().Msg("countdown superseded, not opening question")
			return nil
		}
		if s.Status != models.SessionStatusRunning || !s.IsQuestionClosed {
			logger.Debug().Str("status", string(s.Status)).Msg("session moved on, not opening question")
			return nil
		}
		q, err := tx.GetQuestionByIndex(ctx, s.ID, s.CurrentQuestionIndex)
		if err != nil {
			return store.Translate(err, "current question")
		}
		if q.ID != c.QuestionID {
			logger.Debug().Msg("cursor moved, not opening question")
			return nil
		}
		if err := tx.SetQuestionClosed(ctx, s.ID, false); err != nil {
			return store.Translate(err, "open question")
		}

		fx.InvalidatePattern(cache.GamePattern(s.ID))
		fx.Emit(events.Event{
			Type:      events.TypeQuestionReady,
			SessionID: s.ID,
			Payload:   events.QuestionReadyPayload{SessionID: s.ID, Question: q.View()},
		})
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to open question after countdown")
	}
}

type transitionFunc func(tx store.Tx, fx *effects.List, s *models.Session) (*TransitionResult, error)

// transition locks the session, applies fn and invalidates the session's cached views on commit.
func (a *App) transition(ctx context.Context, id uuid.UUID, fn transitionFunc) (*TransitionResult, error) {
	var res *TransitionResult
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		s, err := tx.LockSession(ctx, id)
		if err != nil {
			return store.Translate(err, "session")
		}
		res, err = fn(tx, fx, s)
		if err != nil {
			return err
		}
		fx.InvalidatePattern(
			cache.GamePattern(id),
			cache.RosterPattern(id),
			cache.QuestionBankPattern(id),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *App) save(ctx context.Context, tx store.Tx, s models.Session) (*models.Session, error) {
	updated, err := tx.UpdateSessionLifecycle(ctx, s)
	if err != nil {
		return nil, store.Translate(err, "update session")
	}
	return updated, nil
}

func (a *App) purgeQueue(ctx context.Context, tx store.Tx, fx *effects.List, sessionID uuid.UUID) error {
	n, err := tx.DeleteQueueForSession(ctx, sessionID)
	if err != nil {
		return store.Translate(err, "purge queue")
	}
	if n > 0 {
		log.Debug().Str("session_id", sessionID.String()).Int("entries", n).Msg("purged queue")
	}
	fx.InvalidatePattern(cache.QueuePattern(sessionID))
	return nil
}

func (a *App) lifecycleEvent(t events.Type, s models.Session) events.Event {
	return events.Event{
		Type:      t,
		SessionID: s.ID,
		Payload:   events.NewSessionPayload(s, a.clock.Now().UTC()),
	}
}

func requireQuestions(ctx context.Context, tx store.Tx, sessionID uuid.UUID) error {
	n, err := tx.CountQuestions(ctx, sessionID)
	if err != nil {
		return store.Translate(err, "questions")
	}
	if n == 0 {
		return apperrors.PreconditionFailed("session has no questions")
	}
	return nil
}
