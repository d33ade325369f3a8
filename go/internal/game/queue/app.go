package queue

import (
	"context"
	"errors"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/game/cache"
	"github.com/eichdmk/ansar-quiz/go/internal/game/effects"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TurnResult reports whether the caller got the turn straight away.
// Position is the caller's 1-based place in line.
type TurnResult struct {
	Assigned bool                 `json:"assigned"`
	Question *models.QuestionView `json:"question,omitempty"`
	Position *int                 `json:"position,omitempty"`
}

type SubmitRequest struct {
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	OptionID      *uuid.UUID
}

type SubmitResult struct {
	IsCorrect            *bool `json:"is_correct"`
	Awarded              bool  `json:"awarded"`
	QuestionClosed       bool  `json:"question_closed"`
	WaitingForEvaluation bool  `json:"waiting_for_evaluation"`
}

type EvaluateRequest struct {
	ParticipantID uuid.UUID
	QuestionID    uuid.UUID
	IsCorrect     bool
}

type EvaluateResult struct {
	Awarded        bool `json:"awarded"`
	QuestionClosed bool `json:"question_closed"`
}

// QueueSnapshot lists a question's active entries, head first.
type QueueSnapshot struct {
	SessionID  uuid.UUID               `json:"session_id"`
	QuestionID uuid.UUID               `json:"question_id"`
	Entries    []models.QueueEntryView `json:"entries"`
}

// App coordinates who may answer the open question. Every write locks the session row.
type App struct {
	store    store.Store
	fx       *effects.Runner
	clock    clockwork.Clock
	queueTTL time.Duration
}

func NewApp(s store.Store, fx *effects.Runner, clock clockwork.Clock, queueTTL time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{store: s, fx: fx, clock: clock, queueTTL: queueTTL}
}

// RequestTurn puts the participant in line for the current question. An empty line grants the turn at once.
func (a *App) RequestTurn(ctx context.Context, participantID, sessionID uuid.UUID) (*TurnResult, error) {
	var res *TurnResult
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return store.Translate(err, "participant")
		}
		if p.SessionID != sessionID {
			return apperrors.InvalidInput("participant %s is not in session %s", participantID, sessionID)
		}

		s, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return store.Translate(err, "session")
		}
		if !s.AcceptsAnswers() {
			return apperrors.Conflict("session is not accepting answers")
		}
		q, err := tx.GetQuestionByIndex(ctx, s.ID, s.CurrentQuestionIndex)
		if err != nil {
			return store.Translate(err, "current question")
		}

		if _, err := tx.GetActiveEntry(ctx, s.ID, q.ID, p.ID); err == nil {
			return apperrors.Conflict("already in queue for this question")
		} else if !errors.Is(err, store.ErrNotFound) {
			return store.Translate(err, "queue entry")
		}

		active, err := tx.CountActiveEntries(ctx, s.ID, q.ID)
		if err != nil {
			return store.Translate(err, "queue")
		}
		position := 0
		if active > 0 {
			if position, err = tx.NextQueuePosition(ctx, s.ID, q.ID); err != nil {
				return store.Translate(err, "queue position")
			}
		}

		entry, err := tx.InsertQueueEntry(ctx, models.QueueEntry{
			ID:            uuid.New(),
			SessionID:     s.ID,
			QuestionID:    q.ID,
			ParticipantID: p.ID,
			Position:      position,
			IsActive:      true,
			JoinedAt:      a.clock.Now().UTC(),
		})
		if err != nil {
			return store.Translate(err, "queue entry")
		}
		ahead, err := tx.CountEntriesAhead(ctx, *entry)
		if err != nil {
			return store.Translate(err, "queue position")
		}
		display := ahead + 1

		res = &TurnResult{Assigned: active == 0, Position: &display}
		fx.Invalidate(cache.QueueKey(s.ID, q.ID))
		if res.Assigned {
			view := q.View()
			res.Question = &view
			fx.Emit(assignedEvent(s.ID, q.ID, p.ID))
		}
		return a.emitQueue(ctx, tx, fx, s.ID, q.ID)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SubmitAnswer records the head's answer. Multiple-choice answers are graded on the spot;
// verbal answers wait for the host.
func (a *App) SubmitAnswer(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	var res *SubmitResult
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		t, err := a.lockTurn(ctx, tx, req.ParticipantID, req.QuestionID, true)
		if err != nil {
			return err
		}
		if t.question.IsVerbal() && req.OptionID != nil {
			return apperrors.InvalidInput("verbal questions take no option")
		}
		entry, err := t.requireHead(ctx, tx)
		if err != nil {
			return err
		}
		fx.Invalidate(cache.QueueKey(t.session.ID, t.question.ID))

		if t.question.IsVerbal() {
			if _, err := tx.UpsertVerbalResponse(ctx, models.VerbalResponse{
				ID:            uuid.New(),
				ParticipantID: req.ParticipantID,
				QuestionID:    t.question.ID,
				AnsweredAt:    a.clock.Now().UTC(),
			}); err != nil {
				return store.Translate(err, "verbal response")
			}
			fx.Emit(events.Event{
				Type:          events.TypeAnswerSubmitted,
				SessionID:     t.session.ID,
				ParticipantID: events.ParticipantRef(req.ParticipantID),
				Payload: events.AnswerSubmittedPayload{
					SessionID:            t.session.ID,
					QuestionID:           t.question.ID,
					ParticipantID:        req.ParticipantID,
					WaitingForEvaluation: true,
				},
			})
			res = &SubmitResult{WaitingForEvaluation: true}
			return a.emitQueue(ctx, tx, fx, t.session.ID, t.question.ID)
		}

		if req.OptionID == nil {
			return apperrors.InvalidInput("option_id is required for a multiple-choice question")
		}
		opt, err := tx.GetOption(ctx, *req.OptionID)
		if err != nil {
			return store.Translate(err, "answer option")
		}
		if opt.QuestionID != t.question.ID {
			return apperrors.InvalidInput("option %s does not belong to question %s", opt.ID, t.question.ID)
		}
		if _, err := tx.UpsertAnswerRecord(ctx, models.AnswerRecord{
			ID:            uuid.New(),
			ParticipantID: req.ParticipantID,
			QuestionID:    t.question.ID,
			OptionID:      opt.ID,
			IsCorrect:     opt.IsCorrect,
			AnsweredAt:    a.clock.Now().UTC(),
		}); err != nil {
			return store.Translate(err, "answer")
		}

		correct := opt.IsCorrect
		res = &SubmitResult{IsCorrect: &correct, Awarded: correct, QuestionClosed: correct}
		if correct {
			return a.award(ctx, tx, fx, t, req.ParticipantID)
		}
		return a.passTurn(ctx, tx, fx, t, entry)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EvaluateAnswer grades the head's verbal answer on the host's behalf.
func (a *App) EvaluateAnswer(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	var res *EvaluateResult
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		q, err := tx.GetQuestion(ctx, req.QuestionID)
		if err != nil {
			return store.Translate(err, "question")
		}
		if !q.IsVerbal() {
			return apperrors.InvalidInput("question %s is not verbal", q.ID)
		}
		t, err := a.lockTurn(ctx, tx, req.ParticipantID, req.QuestionID, true)
		if err != nil {
			return err
		}

		resp, err := tx.GetVerbalResponse(ctx, req.ParticipantID, t.question.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			resp = nil
		case err != nil:
			return store.Translate(err, "verbal response")
		case resp.Graded():
			return apperrors.Conflict("answer already evaluated")
		}

		entry, err := t.requireHead(ctx, tx)
		if err != nil {
			return err
		}

		now := a.clock.Now().UTC()
		if resp == nil {
			if _, err := tx.UpsertVerbalResponse(ctx, models.VerbalResponse{
				ID:            uuid.New(),
				ParticipantID: req.ParticipantID,
				QuestionID:    t.question.ID,
				AnsweredAt:    now,
			}); err != nil {
				return store.Translate(err, "verbal response")
			}
		}
		if _, err := tx.EvaluateVerbalResponse(ctx, req.ParticipantID, t.question.ID, req.IsCorrect, now); err != nil {
			return store.Translate(err, "verbal response")
		}

		fx.Invalidate(cache.QueueKey(t.session.ID, t.question.ID))
		fx.Emit(events.Event{
			Type:          events.TypeAnswerEvaluated,
			SessionID:     t.session.ID,
			ParticipantID: events.ParticipantRef(req.ParticipantID),
			Payload: events.AnswerEvaluatedPayload{
				SessionID:     t.session.ID,
				QuestionID:    t.question.ID,
				ParticipantID: req.ParticipantID,
				IsCorrect:     req.IsCorrect,
			},
		})

		res = &EvaluateResult{Awarded: req.IsCorrect, QuestionClosed: req.IsCorrect}
		if req.IsCorrect {
			return a.award(ctx, tx, fx, t, req.ParticipantID)
		}
		return a.passTurn(ctx, tx, fx, t, entry)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SkipTurn gives up the caller's turn. Only the head can skip itself.
func (a *App) SkipTurn(ctx context.Context, participantID, questionID uuid.UUID) error {
	return a.skip(ctx, participantID, questionID, false)
}

// SkipParticipant removes any active entry on the host's behalf.
func (a *App) SkipParticipant(ctx context.Context, participantID, questionID uuid.UUID) error {
	return a.skip(ctx, participantID, questionID, true)
}

func (a *App) skip(ctx context.Context, participantID, questionID uuid.UUID, byHost bool) error {
	return a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		t, err := a.lockTurn(ctx, tx, participantID, questionID, false)
		if err != nil {
			return err
		}
		entry, err := tx.GetActiveEntry(ctx, t.session.ID, t.question.ID, participantID)
		if err != nil {
			return store.Translate(err, "queue entry")
		}
		head, err := tx.GetQueueHead(ctx, t.session.ID, t.question.ID)
		if err != nil {
			return store.Translate(err, "queue head")
		}
		wasHead := head.ID == entry.ID
		if !byHost && !wasHead {
			return apperrors.Forbidden("only the participant holding the turn can skip it")
		}

		if err := tx.DeactivateEntry(ctx, entry.ID); err != nil {
			return store.Translate(err, "queue entry")
		}
		fx.Invalidate(cache.QueueKey(t.session.ID, t.question.ID))
		fx.Emit(events.Event{
			Type:          events.TypeParticipantSkipped,
			SessionID:     t.session.ID,
			ParticipantID: events.ParticipantRef(participantID),
			Payload: events.ParticipantSkippedPayload{
				SessionID:     t.session.ID,
				QuestionID:    t.question.ID,
				ParticipantID: participantID,
				ByHost:        byHost,
			},
		})
		if wasHead {
			if err := a.advance(ctx, tx, fx, t.session.ID, t.question.ID); err != nil {
				return err
			}
		}
		return a.emitQueue(ctx, tx, fx, t.session.ID, t.question.ID)
	})
}

// ReleaseParticipant drops every live entry the participant holds, passing the turn on
// where they were the head. It runs inside the caller's transaction, which must hold the session lock.
func (a *App) ReleaseParticipant(ctx context.Context, tx store.Tx, fx *effects.List, sessionID, participantID uuid.UUID) error {
	entries, err := tx.ListParticipantActiveEntries(ctx, participantID)
	if err != nil {
		return store.Translate(err, "queue entries")
	}
	for _, e := range entries {
		head, err := tx.GetQueueHead(ctx, e.SessionID, e.QuestionID)
		if err != nil {
			return store.Translate(err, "queue head")
		}
		if err := tx.DeactivateEntry(ctx, e.ID); err != nil {
			return store.Translate(err, "queue entry")
		}
		fx.Invalidate(cache.QueueKey(e.SessionID, e.QuestionID))
		if head.ID == e.ID {
			if err := a.advance(ctx, tx, fx, e.SessionID, e.QuestionID); err != nil {
				return err
			}
		}
		if err := a.emitQueue(ctx, tx, fx, e.SessionID, e.QuestionID); err != nil {
			return err
		}
	}
	return nil
}

// GetQueue returns the active queue of a question, defaulting to the current one. Reads go through the cache.
func (a *App) GetQueue(ctx context.Context, sessionID uuid.UUID, questionID *uuid.UUID) (*QueueSnapshot, error) {
	var qid uuid.UUID
	err := a.store.View(ctx, func(tx store.Tx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return store.Translate(err, "session")
		}
		if questionID == nil {
			q, err := tx.GetQuestionByIndex(ctx, s.ID, s.CurrentQuestionIndex)
			if err != nil {
				return store.Translate(err, "current question")
			}
			qid = q.ID
			return nil
		}
		q, err := tx.GetQuestion(ctx, *questionID)
		if err != nil {
			return store.Translate(err, "question")
		}
		if q.SessionID != s.ID {
			return apperrors.NotFound("question not found")
		}
		qid = q.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap, err := cache.Cached(ctx, a.fx.Cache(), cache.QueueKey(sessionID, qid), a.queueTTL, func(ctx context.Context) (QueueSnapshot, error) {
		out := QueueSnapshot{SessionID: sessionID, QuestionID: qid}
		err := a.store.View(ctx, func(tx store.Tx) error {
			entries, err := tx.ListActiveQueue(ctx, sessionID, qid)
			if err != nil {
				return store.Translate(err, "queue")
			}
			out.Entries = entries
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if snap.Entries == nil {
		snap.Entries = []models.QueueEntryView{}
	}
	return &snap, nil
}

// turn is the locked context of an operation on one question.
// ListAnswers is the host's answer history, filtered by session, participant or both.
func (a *App) ListAnswers(ctx context.Context, f store.AnswerFilter) ([]models.AnswerHistoryItem, error) {
	if f.SessionID == nil && f.ParticipantID == nil {
		return nil, apperrors.InvalidInput("filter by session or participant")
	}
	var out []models.AnswerHistoryItem
	err := a.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListAnswers(ctx, f)
		return store.Translate(err, "answers")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type turn struct {
	session       *models.Session
	question      *models.Question
	participantID uuid.UUID
}

// lockTurn loads the question and participant, locks the session and rejects stale questions.
// requireOpen additionally demands that the question accepts answers.
func (a *App) lockTurn(ctx context.Context, tx store.Tx, participantID, questionID uuid.UUID, requireOpen bool) (*turn, error) {
	q, err := tx.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, store.Translate(err, "question")
	}
	p, err := tx.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, store.Translate(err, "participant")
	}
	if p.SessionID != q.SessionID {
		return nil, apperrors.InvalidInput("participant %s is not in this question's session", participantID)
	}

	s, err := tx.LockSession(ctx, q.SessionID)
	if err != nil {
		return nil, store.Translate(err, "session")
	}
	if s.Status != models.SessionStatusRunning {
		return nil, apperrors.Conflict("session is %s, not running", s.Status)
	}
	if q.Index() != s.CurrentQuestionIndex {
		return nil, apperrors.Conflict("question %s is no longer current", q.ID)
	}
	if requireOpen && s.IsQuestionClosed {
		return nil, apperrors.Conflict("question is closed")
	}
	return &turn{session: s, question: q, participantID: participantID}, nil
}

// requireHead returns the participant's entry if it is the resolved head of the queue.
// The head is re-read rather than trusted from the caller's own row.
func (t *turn) requireHead(ctx context.Context, tx store.Tx) (*models.QueueEntry, error) {
	entry, err := tx.GetActiveEntry(ctx, t.session.ID, t.question.ID, t.participantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Forbidden("you do not hold the turn")
	}
	if err != nil {
		return nil, store.Translate(err, "queue entry")
	}
	head, err := tx.GetQueueHead(ctx, t.session.ID, t.question.ID)
	if err != nil {
		return nil, store.Translate(err, "queue head")
	}
	if head.ID != entry.ID {
		return nil, apperrors.Forbidden("you do not hold the turn")
	}
	return entry, nil
}

// award scores one point, closes the question and retires the whole queue.
func (a *App) award(ctx context.Context, tx store.Tx, fx *effects.List, t *turn, participantID uuid.UUID) error {
	score, err := tx.IncrementScore(ctx, participantID, 1)
	if err != nil {
		return store.Translate(err, "score")
	}
	if err := tx.SetQuestionClosed(ctx, t.session.ID, true); err != nil {
		return store.Translate(err, "close question")
	}
	n, err := tx.DeactivateQuestionEntries(ctx, t.session.ID, t.question.ID)
	if err != nil {
		return store.Translate(err, "queue")
	}

	log.Info().
		Str("session_id", t.session.ID.String()).
		Str("question_id", t.question.ID.String()).
		Str("participant_id", participantID.String()).
		Int("score", score).
		Int("retired_entries", n).
		Msg("question won")

	winner := participantID
	fx.Invalidate(cache.QueueKey(t.session.ID, t.question.ID))
	fx.InvalidatePattern(cache.RosterPattern(t.session.ID), cache.GamePattern(t.session.ID))
	fx.Emit(
		events.Event{
			Type:          events.TypeScoreUpdated,
			SessionID:     t.session.ID,
			ParticipantID: events.ParticipantRef(participantID),
			Payload:       events.ScoreUpdatedPayload{SessionID: t.session.ID, ParticipantID: participantID, Score: score},
		},
		events.Event{
			Type:      events.TypeQuestionClosed,
			SessionID: t.session.ID,
			Payload:   events.QuestionClosedPayload{SessionID: t.session.ID, QuestionID: t.question.ID, WinnerID: &winner},
		},
	)
	return a.emitQueue(ctx, tx, fx, t.session.ID, t.question.ID)
}

// passTurn retires the head's entry after a wrong answer and hands the turn on. The question stays open.
func (a *App) passTurn(ctx context.Context, tx store.Tx, fx *effects.List, t *turn, entry *models.QueueEntry) error {
	if err := tx.DeactivateEntry(ctx, entry.ID); err != nil {
		return store.Translate(err, "queue entry")
	}
	fx.Invalidate(cache.QueueKey(t.session.ID, t.question.ID))
	if err := a.advance(ctx, tx, fx, t.session.ID, t.question.ID); err != nil {
		return err
	}
	return a.emitQueue(ctx, tx, fx, t.session.ID, t.question.ID)
}

// advance announces the new head, if anyone is left in line.
func (a *App) advance(ctx context.Context, tx store.Tx, fx *effects.List, sessionID, questionID uuid.UUID) error {
	head, err := tx.GetQueueHead(ctx, sessionID, questionID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Str("session_id", sessionID.String()).Str("question_id", questionID.String()).Msg("queue empty")
		return nil
	}
	if err != nil {
		return store.Translate(err, "queue head")
	}
	fx.Emit(assignedEvent(sessionID, questionID, head.ParticipantID))
	return nil
}

func (a *App) emitQueue(ctx context.Context, tx store.Tx, fx *effects.List, sessionID, questionID uuid.UUID) error {
	entries, err := tx.ListActiveQueue(ctx, sessionID, questionID)
	if err != nil {
		return store.Translate(err, "queue")
	}
	if entries == nil {
		entries = []models.QueueEntryView{}
	}
	fx.Emit(events.Event{
		Type:      events.TypeQueueUpdated,
		SessionID: sessionID,
		Payload:   events.QueueUpdatedPayload{SessionID: sessionID, QuestionID: questionID, Queue: entries},
	})
	return nil
}

func assignedEvent(sessionID, questionID, participantID uuid.UUID) events.Event {
	return events.Event{
		Type:          events.TypeQuestionAssigned,
		SessionID:     sessionID,
		ParticipantID: events.ParticipantRef(participantID),
		Payload: events.QuestionAssignedPayload{
			SessionID:     sessionID,
			QuestionID:    questionID,
			ParticipantID: participantID,
		},
	}
}
