package clock

import "errors"

// Sentinel kinds for clock errors. Every error leaves the clock unchanged.
var (
	ErrInvalidTransition = errors.New("invalid clock transition")
	ErrClockCompleted    = errors.New("clock completed")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidDuration   = errors.New("invalid period duration")
	ErrInvalidInjuryTime = errors.New("invalid injury time")
)
