package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per poll
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    NotifyChannel,
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener relays outbox rows to a Publisher as soon as Postgres notifies about them,
// and sweeps for anything missed on a fallback interval.
type Listener struct {
	app       *App
	publisher Publisher
	metrics   MetricsCollector
	cfg       ListenerConfig
	listener  *pq.Listener

	mu      sync.Mutex
	running bool
}

func NewListener(app *App, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) (*Listener, error) {
	l := newListener(app, publisher, metrics, cfg)

	pl := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := pl.Listen(cfg.NotifyChannel); err != nil {
		pl.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}
	l.listener = pl

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")
	return l, nil
}

func newListener(app *App, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) *Listener {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Listener{
		app:       app,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.setRunning(true)
	defer l.setRunning(false)

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// Drain whatever accumulated while the relay was down.
	l.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// Connection was re-established; notifications may have been missed.
				l.sweep(ctx)
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			l.sweep(ctx)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	if l.listener == nil {
		return nil
	}
	return l.listener.Close()
}

// Running reports whether Start is currently looping.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) setRunning(v bool) {
	l.mu.Lock()
	l.running = v
	l.mu.Unlock()
}

// handleNotification relays the outbox row named by a notification payload.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	ev, err := l.app.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotPending) {
			// A sweep got there first.
			return nil
		}
		return err
	}

	if err := l.publishWithRetry(ctx, *ev); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := l.app.MarkEventSent(ctx, id); err != nil {
		return err
	}

	log.Debug().Str("event_id", id.String()).Msg("published and marked event as sent")
	return nil
}

func (l *Listener) sweep(ctx context.Context) {
	if pending, err := l.app.PendingCount(ctx); err == nil {
		l.metrics.RecordOutboxLag(pending)
	}
	_, err := l.app.ProcessUnsentEvents(ctx, l.cfg.BatchSize, PublisherFunc(l.publishWithRetry))
	if err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}
}

// publishWithRetry publishes with a linearly growing delay between attempts.
func (l *Listener) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		start := time.Now()
		err := l.publisher.Publish(ctx, event)
		l.metrics.RecordPublishAttempt(string(event.EventType), attempt+1, err == nil)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}
		l.metrics.RecordEventProcessed(string(event.EventType), true, time.Since(start))

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	l.metrics.RecordEventProcessed(string(event.EventType), false, 0)
	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
