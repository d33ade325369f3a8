package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StatePath is where the gateway serves the read projection for resyncing clients.
const StatePath = "GET /api/sessions/{id}/state"

// Service bundles the websocket rooms, the optional broker consumer and the state endpoint.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      http.Handler
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService wires a gateway around cm. consumer may be nil when events arrive
// in-process through a LocalBroadcaster.
func NewService(cm *ConnectionManager, consumer *EventConsumer, stateHandler http.Handler) *Service {
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		eventConsumer:     consumer,
		stateHandler:      stateHandler,
	}
}

// Start runs the connection manager and consumer until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting quiz gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("quiz gateway service shutting down")
	return s.Stop()
}

func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	return nil
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	if s.stateHandler != nil {
		mux.Handle(StatePath, s.stateHandler)
	}
}

func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}
