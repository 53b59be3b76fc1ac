// Package types contains common types used across the application
package types

import "github.com/okian/touchline/internal/domain/model"

// MatchState is an observer snapshot of one match
type MatchState struct {
	MatchID        string           `json:"matchId"`
	Clock          model.ClockState `json:"clock"`
	Score          model.Scoreline  `json:"score"`
	LastSequence   int64            `json:"lastSequence"`
	ActiveSessions int              `json:"activeSessions"`
}

// SubmitResult is returned for an accepted (or replayed duplicate) submission
type SubmitResult struct {
	Event     model.MatchEvent `json:"event"`
	Duplicate bool             `json:"duplicate"`
	Warnings  []string         `json:"warnings"`
}

// ClockAction names a match clock control operation
type ClockAction string

// Clock control actions
const (
	ClockStart         ClockAction = "start"
	ClockPause         ClockAction = "pause"
	ClockResume        ClockAction = "resume"
	ClockStop          ClockAction = "stop"
	ClockInjuryTime    ClockAction = "injury-time"
	ClockEndInjuryTime ClockAction = "end-injury-time"
	ClockPeriod        ClockAction = "period"
	ClockDuration      ClockAction = "duration"
)

// ClockCommand is one control operation on a match clock. Minutes is used by
// injury-time and duration, Period by period.
type ClockCommand struct {
	Action  ClockAction  `json:"action"`
	Minutes int          `json:"minutes,omitempty"`
	Period  model.Period `json:"period,omitempty"`
}

// OpenMatchRequest puts a match under live tracking
type OpenMatchRequest struct {
	MatchID       string `json:"matchId"`
	HomeTeamID    string `json:"homeTeamId,omitempty"`
	AwayTeamID    string `json:"awayTeamId,omitempty"`
	PeriodMinutes int    `json:"periodMinutes,omitempty"`
}
