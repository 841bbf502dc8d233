package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no transition is configured for a trigger
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned for a status outside the lifecycle
	ErrInvalidState = errors.New("invalid status")

	// ErrGuardFailed is returned when every guard on a trigger rejected it
	ErrGuardFailed = errors.New("transition not permitted")
)
