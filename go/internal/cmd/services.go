package main

import (
	"github.com/eichdmk/ansar-quiz/go/internal/config"
	"github.com/eichdmk/ansar-quiz/go/internal/game/catalog"
	"github.com/eichdmk/ansar-quiz/go/internal/game/countdown"
	"github.com/eichdmk/ansar-quiz/go/internal/game/effects"
	"github.com/eichdmk/ansar-quiz/go/internal/game/participant"
	"github.com/eichdmk/ansar-quiz/go/internal/game/projection"
	"github.com/eichdmk/ansar-quiz/go/internal/game/queue"
	"github.com/eichdmk/ansar-quiz/go/internal/game/session"
	"github.com/eichdmk/ansar-quiz/go/internal/game/store"
	"github.com/jonboulle/clockwork"
)

type Services struct {
	Session     *session.Service
	Queue       *queue.Service
	Projection  *projection.Service
	Participant *participant.Service
	Catalog     *catalog.Service

	ProjectionApp *projection.App
	Countdown     *countdown.Scheduler
}

func setupServices(cfg *config.Config, s store.Store, in *infra, clock clockwork.Clock) *Services {
	// Store → effects runner → apps → connect services
	fx := effects.NewRunner(in.cache, in.broadcaster)
	game := cfg.Game

	cd := countdown.NewScheduler(clock, game.CountdownFrom, game.CountdownInterval)

	sessionApp := session.NewApp(s, fx, cd, clock, game.DefaultQuestionDuration, game.SessionTTL)
	queueApp := queue.NewApp(s, fx, clock, game.QueueTTL)
	projectionApp := projection.NewApp(s)
	participantApp := participant.NewApp(s, fx, queueApp, clock, game.RosterTTL)
	catalogApp := catalog.NewApp(s, fx, clock, game.DefaultQuestionDuration, game.QuestionBankTTL)

	return &Services{
		Session:     session.NewService(sessionApp),
		Queue:       queue.NewService(queueApp),
		Projection:  projection.NewService(projectionApp),
		Participant: participant.NewService(participantApp),
		Catalog:     catalog.NewService(catalogApp),

		ProjectionApp: projectionApp,
		Countdown:     cd,
	}
}
