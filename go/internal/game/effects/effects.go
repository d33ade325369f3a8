package effects

import (
	"context"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/cache"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/rs/zerolog/log"
)

// List collects the side effects of one unit of work. Nothing in it runs until the work commits.
type List struct {
	keys     []string
	patterns []string
	events   []events.Event
}

func (l *List) Invalidate(keys ...string) {
	l.keys = append(l.keys, keys...)
}

func (l *List) InvalidatePattern(patterns ...string) {
	l.patterns = append(l.patterns, patterns...)
}

func (l *List) Emit(evs ...events.Event) {
	l.events = append(l.events, evs...)
}

func (l *List) Events() []events.Event {
	return l.events
}

func (l *List) Empty() bool {
	return len(l.keys) == 0 && len(l.patterns) == 0 && len(l.events) == 0
}

// Runner applies effect lists after commit. Failures are logged and dropped.
type Runner struct {
	cache       cache.Cache
	broadcaster events.Broadcaster
	timeout     time.Duration
}

func NewRunner(c cache.Cache, b events.Broadcaster) *Runner {
	if c == nil {
		c = cache.Noop{}
	}
	return &Runner{cache: c, broadcaster: b, timeout: 5 * time.Second}
}

// InTx runs fn in a transaction on s and flushes the effects it recorded once the transaction commits.
// A failed transaction discards them.
func (r *Runner) InTx(ctx context.Context, s store.Store, fn func(tx store.Tx, fx *List) error) error {
	var fx List
	if err := s.InTx(ctx, func(tx store.Tx) error {
		fx = List{}
		return fn(tx, &fx)
	}); err != nil {
		return err
	}
	r.Flush(ctx, &fx)
	return nil
}

// Flush invalidates first, then broadcasts, so a client reacting to an event re-reads fresh data.
func (r *Runner) Flush(ctx context.Context, l *List) {
	if l == nil || l.Empty() {
		return
	}
	// The request may already be gone; the commit it produced still needs announcing.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if len(l.keys) > 0 {
		if err := r.cache.Delete(ctx, l.keys...); err != nil {
			log.Warn().Err(err).Strs("keys", l.keys).Msg("cache invalidation failed")
		}
	}
	for _, p := range l.patterns {
		if err := r.cache.DeletePattern(ctx, p); err != nil {
			log.Warn().Err(err).Str("pattern", p).Msg("cache pattern invalidation failed")
		}
	}

	if len(l.events) == 0 || r.broadcaster == nil {
		return
	}
	if err := r.broadcaster.Broadcast(ctx, l.events...); err != nil {
		log.Warn().Err(err).Int("count", len(l.events)).Msg("broadcast failed")
	}
}

// Broadcast sends events that are not tied to a transaction, such as countdown ticks.
func (r *Runner) Broadcast(ctx context.Context, evs ...events.Event) {
	r.Flush(ctx, &List{events: evs})
}

func (r *Runner) Cache() cache.Cache {
	return r.cache
}
