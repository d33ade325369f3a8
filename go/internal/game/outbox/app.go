package outbox

import (
	"context"
	"fmt"

	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// OutboxRepository is the persistence the outbox app needs.
type OutboxRepository interface {
	InsertEnvelopes(ctx context.Context, envs []events.Envelope) error
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error)
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
	CountPending(ctx context.Context) (int64, error)
}

// App writes broadcasts into the outbox and drains it for the relay.
// It satisfies events.Broadcaster, so game apps stay unaware of the relay.
type App struct {
	repo  OutboxRepository
	clock clockwork.Clock
}

func NewApp(repo OutboxRepository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{repo: repo, clock: clock}
}

// Broadcast persists evs as outbox rows. The insert trigger wakes the relay.
func (a *App) Broadcast(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	now := a.clock.Now()
	envs := make([]events.Envelope, 0, len(evs))
	for _, e := range evs {
		if e.SessionID == uuid.Nil {
			return fmt.Errorf("%s event has no session id", e.Type)
		}
		env, err := events.NewEnvelope(uuid.New(), e, now)
		if err != nil {
			return err
		}
		envs = append(envs, env)
	}

	if err := a.repo.InsertEnvelopes(ctx, envs); err != nil {
		return err
	}

	log.Debug().
		Str("session_id", evs[0].SessionID.String()).
		Int("count", len(envs)).
		Msg("queued events in outbox")
	return nil
}

func (a *App) FetchUnsentEvents(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return a.repo.FetchUnsentOutbox(ctx, limit)
}

func (a *App) GetEventByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	return a.repo.FetchOutboxByID(ctx, id)
}

func (a *App) MarkEventSent(ctx context.Context, id uuid.UUID) error {
	return a.repo.MarkOutboxSent(ctx, id)
}

func (a *App) PendingCount(ctx context.Context) (int64, error) {
	return a.repo.CountPending(ctx)
}

// ProcessUnsentEvents hands up to batchSize pending events to processor,
// marking each one sent when processor succeeds. It returns how many were sent.
func (a *App) ProcessUnsentEvents(ctx context.Context, batchSize int32, processor Publisher) (int, error) {
	pending, err := a.FetchUnsentEvents(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	sent, failed := 0, 0
	for _, ev := range pending {
		if err := processor.Publish(ctx, ev); err != nil {
			failed++
			log.Error().Err(err).
				Str("event_id", ev.ID.String()).
				Str("event_type", string(ev.EventType)).
				Msg("failed to relay outbox event")
			continue
		}
		if err := a.repo.MarkOutboxSent(ctx, ev.ID); err != nil {
			failed++
			log.Error().Err(err).Str("event_id", ev.ID.String()).Msg("failed to mark outbox event as sent")
			continue
		}
		sent++
	}

	if len(pending) > 0 {
		log.Info().
			Int("total", len(pending)).
			Int("sent", sent).
			Int("failed", failed).
			Msg("processed unsent outbox events")
	}
	return sent, nil
}
