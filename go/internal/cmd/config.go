package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/eichdmk/ansar-quiz/go/internal/game/cache"
	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/eichdmk/ansar-quiz/go/internal/game/gateway"
	"github.com/eichdmk/ansar-quiz/go/internal/game/outbox"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// infra holds the external collaborators the game apps are built on.
type infra struct {
	cache       cache.Cache
	broadcaster events.Broadcaster
	// rooms is set when this process serves websockets itself.
	rooms   *gateway.ConnectionManager
	closers []func() error
}

func (i *infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

func setupInfra(ctx context.Context, cfg *config.Config, database *sql.DB, clock clockwork.Clock) (*infra, error) {
	in := &infra{cache: cache.Noop{}}

	if addr := cfg.Redis.Addr(); addr != "" {
		rc, err := cache.Connect(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		in.cache = rc
		in.closers = append(in.closers, rc.Close)
	} else {
		log.Warn().Msg("REDIS_HOST not set; caching disabled")
	}

	switch {
	case database == nil:
		// No Postgres means no outbox table; serve the rooms in-process.
		in.rooms = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
		in.broadcaster = gateway.NewLocalBroadcaster(in.rooms, clock)
		log.Info().Msg("broadcasting to in-process websocket rooms")

	case cfg.Game.BroadcastMode == config.BroadcastDirect:
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		js, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("create JetStream publisher: %w", err)
		}
		in.closers = append(in.closers, js.Close)
		in.broadcaster = outbox.NewDirectBroadcaster(js, clock)
		log.Info().Str("nats_url", cfg.NATSURL).Msg("broadcasting directly to JetStream")

	default:
		in.broadcaster = outbox.NewApp(outbox.NewRepository(database), clock)
		log.Info().Msg("broadcasting through the outbox table")
	}

	return in, nil
}
