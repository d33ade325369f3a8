package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, database, err := setupStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up store")
	}
	if database != nil {
		defer database.Close()
	}

	clock := clockwork.NewRealClock()
	in, err := setupInfra(ctx, cfg, database, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up infrastructure")
	}
	defer in.Close()

	if in.rooms != nil {
		go in.rooms.Start(ctx)
	}

	services := setupServices(cfg, s, in, clock)
	server := setupServer(cfg.Port, cfg.JWTSecret, services, in, database)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Game.StoreDriver).
			Str("broadcast", cfg.Game.BroadcastMode).
			Msg("quiz API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := services.Countdown.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("countdowns did not stop in time")
	}
	log.Info().Msg("shutdown complete")
}
