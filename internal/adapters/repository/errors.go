package repository

import "errors"

// Sentinel kinds for event store errors.
var (
	ErrDuplicateSequence = errors.New("sequence already stored for match")
	ErrInvalidEvent      = errors.New("invalid event record")
	ErrStoreClosed       = errors.New("event store closed")
)
