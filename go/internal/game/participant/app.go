package participant

import (
	"context"
	"errors"
	"strings"
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

const maxNameLength = 64

// QueueReleaser retires a leaving participant's queue entries inside the caller's transaction.
type QueueReleaser interface {
	ReleaseParticipant(ctx context.Context, tx store.Tx, fx *effects.List, sessionID, participantID uuid.UUID) error
}

type JoinRequest struct {
	SessionID uuid.UUID
	Username  string
	GroupName *string
}

// JoinResult carries the current question when the participant joins a running session.
type JoinResult struct {
	Participant models.Participant   `json:"participant"`
	Question    *models.QuestionView `json:"question,omitempty"`
}

type App struct {
	store     store.Store
	fx        *effects.Runner
	queue     QueueReleaser
	clock     clockwork.Clock
	rosterTTL time.Duration
}

func NewApp(s store.Store, fx *effects.Runner, queue QueueReleaser, clock clockwork.Clock, rosterTTL time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{store: s, fx: fx, queue: queue, clock: clock, rosterTTL: rosterTTL}
}

// Join adds a player to a session that has been opened and has not finished.
func (a *App) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	name := strings.TrimSpace(req.Username)
	if name == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if len([]rune(name)) > maxNameLength {
		return nil, apperrors.InvalidInput("username must be at most %d characters", maxNameLength)
	}
	var group *string
	if req.GroupName != nil {
		if g := strings.TrimSpace(*req.GroupName); g != "" {
			group = &g
		}
	}

	var res *JoinResult
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		s, err := tx.LockSession(ctx, req.SessionID)
		if err != nil {
			return store.Translate(err, "session")
		}
		switch s.Status {
		case models.SessionStatusDraft:
			return apperrors.Conflict("session is not opened yet")
		case models.SessionStatusFinished:
			return apperrors.Conflict("session has finished")
		}

		p, err := tx.CreateParticipant(ctx, models.Participant{
			ID:        uuid.New(),
			SessionID: s.ID,
			Username:  name,
			GroupName: group,
			JoinedAt:  a.clock.Now().UTC(),
		})
		if err != nil {
			return store.Translate(err, "participant")
		}
		res = &JoinResult{Participant: *p}

		if s.Status == models.SessionStatusRunning {
			q, err := tx.GetQuestionByIndex(ctx, s.ID, s.CurrentQuestionIndex)
			switch {
			case err == nil:
				view := q.View()
				res.Question = &view
			case !errors.Is(err, store.ErrNotFound):
				return store.Translate(err, "current question")
			}
		}

		fx.InvalidatePattern(cache.RosterPattern(s.ID), cache.GamePattern(s.ID))
		fx.Emit(events.Event{
			Type:          events.TypeParticipantJoined,
			SessionID:     s.ID,
			ParticipantID: events.ParticipantRef(p.ID),
			Payload:       events.ParticipantJoinedPayload{Participant: *p},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", req.SessionID.String()).
		Str("participant_id", res.Participant.ID.String()).
		Msg("participant joined")
	return res, nil
}

// Leave removes a participant, handing on any turn they held.
func (a *App) Leave(ctx context.Context, participantID uuid.UUID) error {
	return a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return store.Translate(err, "participant")
		}
		if _, err := tx.LockSession(ctx, p.SessionID); err != nil {
			return store.Translate(err, "session")
		}
		if err := a.queue.ReleaseParticipant(ctx, tx, fx, p.SessionID, p.ID); err != nil {
			return err
		}
		if err := tx.DeleteParticipant(ctx, p.ID); err != nil {
			return store.Translate(err, "participant")
		}

		fx.InvalidatePattern(cache.RosterPattern(p.SessionID), cache.GamePattern(p.SessionID))
		fx.Emit(events.Event{
			Type:          events.TypeParticipantLeft,
			SessionID:     p.SessionID,
			ParticipantID: events.ParticipantRef(p.ID),
			Payload:       events.ParticipantLeftPayload{SessionID: p.SessionID, ParticipantID: p.ID},
		})
		return nil
	})
}

// List returns the roster by score, highest first, read through the cache.
func (a *App) List(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	return cache.Cached(ctx, a.fx.Cache(), cache.RosterKey(sessionID), a.rosterTTL, func(ctx context.Context) ([]models.Participant, error) {
		out := []models.Participant{}
		err := a.store.View(ctx, func(tx store.Tx) error {
			if _, err := tx.GetSession(ctx, sessionID); err != nil {
				return store.Translate(err, "session")
			}
			ps, err := tx.ListParticipants(ctx, sessionID)
			if err != nil {
				return store.Translate(err, "participants")
			}
			out = append(out, ps...)
			return nil
		})
		return out, err
	})
}

// SetScore overrides a participant's score. It is the host's manual correction.
func (a *App) SetScore(ctx context.Context, participantID uuid.UUID, score int) (*models.Participant, error) {
	if score < 0 {
		return nil, apperrors.InvalidInput("score must not be negative")
	}

	var out *models.Participant
	err := a.fx.InTx(ctx, a.store, func(tx store.Tx, fx *effects.List) error {
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return store.Translate(err, "participant")
		}
		if _, err := tx.LockSession(ctx, p.SessionID); err != nil {
			return store.Translate(err, "session")
		}
		updated, err := tx.SetScore(ctx, p.ID, score)
		if err != nil {
			return store.Translate(err, "participant")
		}
		out = updated

		fx.InvalidatePattern(cache.RosterPattern(p.SessionID), cache.QueuePattern(p.SessionID), cache.GamePattern(p.SessionID))
		fx.Emit(events.Event{
			Type:          events.TypeScoreUpdated,
			SessionID:     p.SessionID,
			ParticipantID: events.ParticipantRef(p.ID),
			Payload:       events.ScoreUpdatedPayload{SessionID: p.SessionID, ParticipantID: p.ID, Score: updated.Score},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("participant_id", participantID.String()).
		Int("score", score).
		Msg("score set by host")
	return out, nil
}
