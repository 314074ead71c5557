package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")
	ErrNoParticipant   = errors.New("no participant joined before timeout")
	ErrSessionClosed   = errors.New("session already closed")
)
