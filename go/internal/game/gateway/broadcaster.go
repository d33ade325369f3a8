package gateway

import (
	"context"
	"errors"

	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// LocalBroadcaster delivers events straight to an in-process ConnectionManager.
// Used when the API server hosts the websocket rooms itself.
type LocalBroadcaster struct {
	cm    *ConnectionManager
	clock clockwork.Clock
}

func NewLocalBroadcaster(cm *ConnectionManager, clock clockwork.Clock) *LocalBroadcaster {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LocalBroadcaster{cm: cm, clock: clock}
}

func (b *LocalBroadcaster) Broadcast(_ context.Context, evs ...events.Event) error {
	now := b.clock.Now()
	var errs []error
	for _, e := range evs {
		env, err := events.NewEnvelope(uuid.New(), e, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.cm.BroadcastEnvelope(env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
