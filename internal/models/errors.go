package models

import "errors"

var (
	// ErrNotFound is returned for an unknown guest id or token
	ErrNotFound = errors.New("guest not found")
	// ErrDeadlinePassed is returned when an RSVP arrives after the response window closed
	ErrDeadlinePassed = errors.New("the deadline to respond has passed")
	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")
	// ErrTokenGeneration is returned when no unused token could be produced
	ErrTokenGeneration = errors.New("could not generate a unique token")
)
