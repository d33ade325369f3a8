package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"slices"
	"time"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/game/catalog"
	"github.com/eichdmk/ansar-quiz/go/internal/game/gateway"
	"github.com/eichdmk/ansar-quiz/go/internal/game/participant"
	"github.com/eichdmk/ansar-quiz/go/internal/game/projection"
	"github.com/eichdmk/ansar-quiz/go/internal/game/queue"
	"github.com/eichdmk/ansar-quiz/go/internal/game/session"
	"github.com/eichdmk/ansar-quiz/go/internal/rpcutil"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(port int, jwtSecret string, services *Services, in *infra, database *sql.DB) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{rpcutil.ErrorKindHeader},
	})

	registerServices(mux, services, jwtSecret)

	mux.Handle("GET /api/sessions/{id}/state", projection.StateHandler(services.ProjectionApp))
	if in.rooms != nil {
		gateway.NewService(in.rooms, nil, nil).RegisterRoutes(mux)
	}

	setupHealthCheck(mux, database)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services, jwtSecret string) {
	hostOnly := slices.Concat(session.HostProcedures, queue.HostProcedures, catalog.HostProcedures, participant.HostProcedures)
	opts := []connect.HandlerOption{
		connect.WithInterceptors(rpcutil.HostGuard(jwtSecret, hostOnly...)),
	}

	sessionPath, sessionHandler := session.NewSessionServiceHandler(services.Session, opts...)
	mux.Handle(sessionPath, sessionHandler)

	queuePath, queueHandler := queue.NewQueueServiceHandler(services.Queue, opts...)
	mux.Handle(queuePath, queueHandler)

	projectionPath, projectionHandler := projection.NewProjectionServiceHandler(services.Projection, opts...)
	mux.Handle(projectionPath, projectionHandler)

	participantPath, participantHandler := participant.NewParticipantServiceHandler(services.Participant, opts...)
	mux.Handle(participantPath, participantHandler)

	catalogPath, catalogHandler := catalog.NewCatalogServiceHandler(services.Catalog, opts...)
	mux.Handle(catalogPath, catalogHandler)
}

func setupHealthCheck(mux *http.ServeMux, database *sql.DB) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := database.PingContext(ctx); err != nil {
				log.Warn().Err(err).Msg("health check: database unreachable")
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Warn().Err(err).Msg("failed to write health check response")
		}
	})
}
