// Package matchsim drives a running service with simulated match traffic:
// several operators per match submitting concurrently, retries of already
// sent submissions and deliberately invalid forms. It then checks that the
// event log, sessions and scores the service reports are consistent with
// what was accepted.
package matchsim

import (
	"time"

	"github.com/okian/touchline/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Matches           int           // Number of matches to simulate
	Operators         int           // Operators per match
	EventsPerOperator int           // Submissions generated per operator
	DuplicateRate     float64       // Share of submissions sent twice
	InvalidRate       float64       // Share of submissions with an out-of-range minute
	Workers           int           // Number of concurrent submitters
	Timeout           time.Duration // HTTP request timeout
	Seed              uint64        // Generator seed; equal seeds give equal traffic
	OutputFile        string        // Output file for generated submissions
	Verbose           bool          // Enable verbose logging
}

// Submission is one form an operator sends.
type Submission struct {
	OperatorID string                   `json:"operatorId"`
	Form       model.EventEntryFormData `json:"form"`
	Invalid    bool                     `json:"invalid"`
	Retry      bool                     `json:"retry"`
}

// Outcome classifies the service's answer to a submission.
type Outcome int

// Submission outcomes.
const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
	OutcomeRejected
	OutcomeFailed
)

// Stats holds run statistics.
type Stats struct {
	MatchesOpened   int
	SessionsStarted int
	EventsGenerated int
	EventsSubmitted int
	EventsAccepted  int
	EventsDuplicate int
	EventsRejected  int
	EventsFailed    int
	MatchesVerified int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	AcceptedByMatch map[string]int
	GoalsByMatch    map[string]model.Scoreline
}
