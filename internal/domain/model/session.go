package model

import "time"

// EntrySession is one operator's bounded period of recording events for a match.
type EntrySession struct {
	SessionID     string              `json:"sessionId"`
	MatchID       string              `json:"matchId"`
	OperatorID    string              `json:"operatorId"`
	OperatorRole  string              `json:"operatorRole"`
	StartTime     time.Time           `json:"startTime"`
	LastActivity  time.Time           `json:"lastActivity"`
	EventsEntered int                 `json:"eventsEntered"`
	IsActive      bool                `json:"isActive"`
	Draft         *EventEntryFormData `json:"draft,omitempty"`
}

// SessionStats aggregates every session ever opened for a match.
type SessionStats struct {
	TotalSessions           int     `json:"totalSessions"`
	ActiveSessions          int     `json:"activeSessions"`
	TotalEvents             int     `json:"totalEvents"`
	AverageEventsPerSession float64 `json:"averageEventsPerSession"`
}
