package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrUnknownClockAction = errors.New("unknown clock action")
)
