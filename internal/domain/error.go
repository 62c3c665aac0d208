package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrNotOnboarded       = errors.New("user has not shared a phone number yet")
	ErrCodeInvalidOrUsed  = errors.New("access code invalid or already used")
	ErrGatewayFailure     = errors.New("channel gateway call failed")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
