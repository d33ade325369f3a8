package rpcutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eichdmk/ansar-quiz/go/internal/apperrors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on a request and reports failures as invalid input.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.InvalidInput("invalid request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return apperrors.InvalidInput("invalid request: %s", strings.Join(msgs, ", "))
}

// ParseUUID parses a required identifier field.
func ParseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput("%s must be a UUID", field)
	}
	return id, nil
}

// ParseOptionalUUID parses an identifier that may be empty.
func ParseOptionalUUID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := ParseUUID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
