package session

import (
	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/eichdmk/ansar-quiz/go/internal/models"
)

type transition string

const (
	transitionOpen    transition = "open"
	transitionClose   transition = "close"
	transitionStart   transition = "start"
	transitionRestart transition = "restart"
	transitionAdvance transition = "advance"
)

// allowedFrom lists the source states of each guarded transition. Stop is legal from every state.
var allowedFrom = map[transition][]models.SessionStatus{
	transitionOpen:    {models.SessionStatusDraft},
	transitionClose:   {models.SessionStatusReady},
	transitionStart:   {models.SessionStatusReady},
	transitionRestart: {models.SessionStatusRunning, models.SessionStatusFinished},
	transitionAdvance: {models.SessionStatusRunning},
}

func validateTransition(t transition, from models.SessionStatus) error {
	for _, s := range allowedFrom[t] {
		if s == from {
			return nil
		}
	}
	return apperrors.Conflict("cannot %s a session that is %s", t, from)
}
