package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/game/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string // Durable name; each gateway replica needs its own
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    events.StreamName,
		ConsumerName:  "quiz-gateway",
		SubjectFilter: events.SubjectPrefix + ".>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EnvelopeSink receives decoded envelopes.
type EnvelopeSink interface {
	BroadcastEnvelope(env events.Envelope) error
}

// EventConsumer reads relayed events from JetStream and fans them out to session rooms.
type EventConsumer struct {
	sink     EnvelopeSink
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
}

func NewEventConsumer(ctx context.Context, sink EnvelopeSink, config JetStreamConsumerConfig) (*EventConsumer, error) {
	nc, err := nats.Connect(config.URL,
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{sink: sink, nc: nc, js: js, config: config}
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	// Clients resync through the state endpoint, so a fresh consumer only needs new events.
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Quiz gateway websocket fan-out",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("JetStream consumer ready")
	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is done.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Msg("starting JetStream event consumer")

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		if err := processMessage(ec.sink, msg.Data()); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
			// Undecodable messages will never succeed; drop them.
			if termErr := msg.Term(); termErr != nil {
				log.Error().Err(termErr).Msg("failed to TERM message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	log.Info().Msg("event consumer shutting down")
	return nil
}

var errUnknownEventType = errors.New("unknown event type")

// processMessage decodes a relayed envelope and hands it to sink.
func processMessage(sink EnvelopeSink, data []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.SessionID == uuid.Nil {
		return fmt.Errorf("event %s has no session id", env.EventID)
	}
	if !isKnown(env.EventType) {
		return fmt.Errorf("%w: %s", errUnknownEventType, env.EventType)
	}

	log.Debug().
		Str("event_id", env.EventID.String()).
		Str("session_id", env.SessionID.String()).
		Str("event_type", string(env.EventType)).
		Msg("processing JetStream event")

	return sink.BroadcastEnvelope(env)
}

func isKnown(t events.Type) bool {
	for _, k := range events.Known {
		if k == t {
			return true
		}
	}
	return false
}

func (ec *EventConsumer) Conn() *nats.Conn {
	return ec.nc
}

func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
