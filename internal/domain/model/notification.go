package model

import "time"

// NotificationKind identifies what changed in a match.
type NotificationKind string

// Notification kinds.
const (
	NotifyEventAdded     NotificationKind = "event_added"
	NotifyScoreUpdated   NotificationKind = "score_updated"
	NotifyClockChanged   NotificationKind = "clock_changed"
	NotifySessionChanged NotificationKind = "session_changed"
)

// Scoreline maps team ids to goals.
type Scoreline map[string]int

// Clone returns an independent copy.
func (s Scoreline) Clone() Scoreline {
	out := make(Scoreline, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Notification is a state delta published to match observers.
// Sequence is the event sequence for event_added, and the last assigned
// sequence of the match for every other kind.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	MatchID  string           `json:"matchId"`
	Sequence int64            `json:"sequence"`
	Event    *MatchEvent      `json:"event,omitempty"`
	Score    Scoreline        `json:"score,omitempty"`
	Clock    *ClockState      `json:"clock,omitempty"`
	Session  *EntrySession    `json:"session,omitempty"`
	At       time.Time        `json:"at"`
}
