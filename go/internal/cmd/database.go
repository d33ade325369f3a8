package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/eichdmk/ansar-quiz/go/internal/dbconfig"
	"github.com/eichdmk/ansar-quiz/go/internal/game/db"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store/memstore"
	"github.com/rs/zerolog/log"
)

// setupStore returns the durable store and, for Postgres, the pool behind it.
func setupStore(ctx context.Context, cfg *config.Config) (store.Store, *sql.DB, error) {
	if cfg.Game.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory store; state is lost on restart")
		return memstore.New(), nil, nil
	}

	database, err := dbconfig.Open(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return store.NewPostgres(database), database, nil
}
