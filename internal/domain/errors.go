package domain

import "errors"

var (
	// ErrSequenceUnavailable is returned when the counter store cannot issue a value.
	ErrSequenceUnavailable = errors.New("sequence unavailable")

	// ErrFeedUnavailable is returned when any stage of feed assembly fails.
	ErrFeedUnavailable = errors.New("feed unavailable")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
