package rpcutil

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// ErrorKindHeader carries the stable error kind so clients need not parse messages.
const ErrorKindHeader = "Error-Kind"

var kindCodes = map[apperrors.Kind]connect.Code{
	apperrors.KindNotFound:           connect.CodeNotFound,
	apperrors.KindConflict:           connect.CodeAborted,
	apperrors.KindForbidden:          connect.CodePermissionDenied,
	apperrors.KindPreconditionFailed: connect.CodeFailedPrecondition,
	apperrors.KindInvalidInput:       connect.CodeInvalidArgument,
	apperrors.KindInternal:           connect.CodeInternal,
}

// ToConnectError maps an application error onto a connect error. Internal details never leave the process.
func ToConnectError(procedure string, err error) error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		log.Error().Err(err).Str("procedure", procedure).Msg("request failed")
	}

	out := connect.NewError(kindCodes[kind], errors.New(apperrors.Message(err)))
	out.Meta().Set(ErrorKindHeader, string(kind))
	return out
}
