package outbox

import (
	"context"
	"errors"

	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DirectBroadcaster skips the outbox table and hands events straight to a publisher.
// Events published while the broker is down are lost.
type DirectBroadcaster struct {
	publisher Publisher
	clock     clockwork.Clock
}

func NewDirectBroadcaster(publisher Publisher, clock clockwork.Clock) *DirectBroadcaster {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DirectBroadcaster{publisher: publisher, clock: clock}
}

func (d *DirectBroadcaster) Broadcast(ctx context.Context, evs ...events.Event) error {
	now := d.clock.Now()
	var errs []error
	for _, e := range evs {
		payload, err := events.MarshalPayload(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ev := OutboxEvent{
			ID:            uuid.New(),
			SessionID:     e.SessionID,
			ParticipantID: e.ParticipantID,
			EventType:     e.Type,
			Payload:       payload,
			CreatedAt:     now,
		}
		if err := d.publisher.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
