package timeline

import "errors"

var (
	// ErrUnknownToken is returned when an id is not in the current set.
	ErrUnknownToken = errors.New("unknown token")

	// ErrInvalidTransition is returned when a transition is not allowed from
	// the token's current status.
	ErrInvalidTransition = errors.New("invalid transition")
)
