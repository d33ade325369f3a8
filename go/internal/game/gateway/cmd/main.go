package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/eichdmk/ansar-quiz/go/internal/dbconfig"
	"github.com/eichdmk/ansar-quiz/go/internal/game/gateway"
	"github.com/eichdmk/ansar-quiz/go/internal/game/projection"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8082"
	}

	conn, err := dbconfig.Open(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	gwCfg := gateway.DefaultConfig()
	gwCfg.JetStreamConfig.URL = cfg.NATSURL
	if name := os.Getenv("GATEWAY_CONSUMER"); name != "" {
		gwCfg.JetStreamConfig.ConsumerName = name
	}

	cm := gateway.NewConnectionManager(gwCfg.ConnectionConfig)
	consumer, err := gateway.NewEventConsumer(ctx, cm, gwCfg.JetStreamConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}

	state := projection.StateHandler(projection.NewApp(store.NewPostgres(conn)))
	svc := gateway.NewService(cm, consumer, state)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if !consumer.Conn().IsConnected() {
			http.Error(w, "NATS disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service":     "quiz-gateway",
			"connections": svc.Stats().TotalConnections,
		})
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     gateway.CORSMiddleware(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := svc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("quiz gateway shutdown complete")
}
