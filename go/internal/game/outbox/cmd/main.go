package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/eichdmk/ansar-quiz/go/internal/dbconfig"
	"github.com/eichdmk/ansar-quiz/go/internal/game/db"
	"github.com/eichdmk/ansar-quiz/go/internal/game/outbox"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	conn, err := dbconfig.Open(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	// JetStream publisher
	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATSURL
	js, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer js.Close()

	var publisher outbox.Publisher = js
	if cfg.RabbitURL != "" {
		rabbit, err := outbox.NewRabbitMQPublisher(cfg.RabbitURL, "quiz.events")
		if err != nil {
			log.Fatal().Err(err).Msg("create RabbitMQ publisher")
		}
		defer rabbit.Close()
		publisher = outbox.NewMultiPublisher(js, rabbit)
		log.Info().Msg("mirroring events to RabbitMQ")
	}

	metrics := outbox.NewMetrics()
	repo := outbox.NewRepository(conn)
	app := outbox.NewApp(repo, clockwork.NewRealClock())

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dbCfg.DSN()
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	listener, err := outbox.NewListener(app, publisher, metrics, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	health := outbox.NewHealthChecker(repo, app, listener, js.Conn(), metrics, 2*ltCfg.FallbackInterval)
	mux := http.NewServeMux()
	mux.Handle("GET /health", health)
	mux.Handle("GET /metrics", outbox.MetricsHandler(metrics))

	port := 8081
	if p, err := strconv.Atoi(os.Getenv("OUTBOX_HEALTH_PORT")); err == nil {
		port = p
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", port).Msg("outbox health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting outbox relay")
		errCh <- listener.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("listener exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}
