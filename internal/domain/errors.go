package domain

import "errors"

var (
	ErrUnknownSignal = errors.New("unknown signal")
	ErrVideoNotFound = errors.New("video not found")
	ErrInvalidRating = errors.New("rating must be -1, 0 or 1")
)
