// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType enumerates the match events an operator can record.
type EventType string

// Known event types.
const (
	EventGoal         EventType = "goal"
	EventOwnGoal      EventType = "own_goal"
	EventAssist       EventType = "assist"
	EventShot         EventType = "shot"
	EventSave         EventType = "save"
	EventYellowCard   EventType = "yellow_card"
	EventRedCard      EventType = "red_card"
	EventSubstitution EventType = "substitution"
	EventFoul         EventType = "foul"
	EventInjury       EventType = "injury"
	EventOffside      EventType = "offside"
	EventCorner       EventType = "corner"
	EventFreeKick     EventType = "free_kick"
	EventPenalty      EventType = "penalty"
	EventOther        EventType = "other"
)

var knownEventTypes = map[EventType]struct{}{
	EventGoal: {}, EventOwnGoal: {}, EventAssist: {}, EventShot: {}, EventSave: {},
	EventYellowCard: {}, EventRedCard: {}, EventSubstitution: {}, EventFoul: {},
	EventInjury: {}, EventOffside: {}, EventCorner: {}, EventFreeKick: {},
	EventPenalty: {}, EventOther: {},
}

// Known reports whether t is one of the supported event types.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// AffectsScore reports whether accepting an event of this type changes the scoreline.
func (t EventType) AffectsScore() bool {
	return t == EventGoal || t == EventOwnGoal
}

// Match minute bounds, inclusive.
const (
	MinMinute = 0
	MaxMinute = 120
)

// EventEntryFormData is the operator-submitted draft of a match event.
// Fields mirror the entry form; type-specific fields are optional and are
// folded into Details when the event is accepted.
type EventEntryFormData struct {
	MatchID           string            `json:"matchId"`
	EventType         EventType         `json:"eventType"`
	Minute            *int              `json:"minute,omitempty"` // stamped from the match clock when omitted
	TeamID            string            `json:"teamId"`
	PlayerID          string            `json:"playerId,omitempty"`
	SecondaryPlayerID string            `json:"secondaryPlayerId,omitempty"`
	Description       string            `json:"description,omitempty"`
	CardType          string            `json:"cardType,omitempty"`
	GoalType          string            `json:"goalType,omitempty"`
	ShotType          string            `json:"shotType,omitempty"`
	SaveType          string            `json:"saveType,omitempty"`
	Severity          string            `json:"severity,omitempty"`
	SubstitutionType  string            `json:"substitutionType,omitempty"`
	Location          string            `json:"location,omitempty"`
	Data              map[string]string `json:"data,omitempty"`
	SubmissionID      string            `json:"submissionId,omitempty"`
	Timestamp         *time.Time        `json:"timestamp,omitempty"`
}

// MinuteValue returns the minute and whether it was set.
func (f *EventEntryFormData) MinuteValue() (int, bool) {
	if f.Minute == nil {
		return 0, false
	}
	return *f.Minute, true
}

// IntPtr is a small helper for building form data literals.
func IntPtr(v int) *int { return &v }

// Details carries the type-specific fields of an accepted event.
type Details interface {
	isDetails()
}

// GoalDetails applies to goal and own_goal events.
type GoalDetails struct {
	GoalType string `json:"goalType,omitempty"`
	Location string `json:"location,omitempty"`
}

// CardDetails applies to yellow_card and red_card events.
type CardDetails struct {
	CardType string `json:"cardType,omitempty"`
}

// ShotDetails applies to shot and penalty events.
type ShotDetails struct {
	ShotType string `json:"shotType,omitempty"`
	Location string `json:"location,omitempty"`
}

// SaveDetails applies to save events.
type SaveDetails struct {
	SaveType string `json:"saveType,omitempty"`
}

// InjuryDetails applies to injury events.
type InjuryDetails struct {
	Severity string `json:"severity,omitempty"`
}

// SubstitutionDetails applies to substitution events.
type SubstitutionDetails struct {
	SubstitutionType string `json:"substitutionType,omitempty"`
}

// FoulDetails applies to foul, free_kick and offside events.
type FoulDetails struct {
	Location string `json:"location,omitempty"`
}

func (GoalDetails) isDetails()         {}
func (CardDetails) isDetails()         {}
func (ShotDetails) isDetails()         {}
func (SaveDetails) isDetails()         {}
func (InjuryDetails) isDetails()       {}
func (SubstitutionDetails) isDetails() {}
func (FoulDetails) isDetails()         {}

// DetailsFromForm folds the form's type-specific fields into the variant for t.
// Returns nil for types that carry no details.
func DetailsFromForm(f *EventEntryFormData) Details {
	switch f.EventType {
	case EventGoal, EventOwnGoal:
		return GoalDetails{GoalType: f.GoalType, Location: f.Location}
	case EventYellowCard, EventRedCard:
		return CardDetails{CardType: f.CardType}
	case EventShot, EventPenalty:
		return ShotDetails{ShotType: f.ShotType, Location: f.Location}
	case EventSave:
		return SaveDetails{SaveType: f.SaveType}
	case EventInjury:
		return InjuryDetails{Severity: f.Severity}
	case EventSubstitution:
		return SubstitutionDetails{SubstitutionType: f.SubstitutionType}
	case EventFoul, EventFreeKick, EventOffside:
		return FoulDetails{Location: f.Location}
	default:
		return nil
	}
}

// DecodeDetails restores the Details variant for t from its JSON encoding.
func DecodeDetails(t EventType, raw []byte) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var (
		d   Details
		err error
	)
	switch t {
	case EventGoal, EventOwnGoal:
		var v GoalDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case EventYellowCard, EventRedCard:
		var v CardDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case EventShot, EventPenalty:
		var v ShotDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case EventSave:
		var v SaveDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case EventInjury:
		var v InjuryDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case EventSubstitution:
		var v SubstitutionDetails
		err = json.Unmarshal(raw, &v)
		d = v
	case EventFoul, EventFreeKick, EventOffside:
		var v FoulDetails
		err = json.Unmarshal(raw, &v)
		d = v
	default:
		return nil, fmt.Errorf("event type %q carries no details", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", t, err)
	}
	return d, nil
}

// MatchEvent is an accepted, immutable match event.
type MatchEvent struct {
	ID                string            `json:"id"`
	Sequence          int64             `json:"sequence"`
	MatchID           string            `json:"matchId"`
	Type              EventType         `json:"type"`
	Minute            int               `json:"minute"`
	Period            Period            `json:"period,omitempty"`
	TeamID            string            `json:"teamId"`
	PlayerID          string            `json:"playerId,omitempty"`
	SecondaryPlayerID string            `json:"secondaryPlayerId,omitempty"`
	Description       string            `json:"description,omitempty"`
	Details           Details           `json:"details,omitempty"`
	Extensions        map[string]string `json:"extensions,omitempty"`
	OperatorID        string            `json:"operatorId,omitempty"`
	OperatorRole      string            `json:"operatorRole,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
	ClientTimestamp   *time.Time        `json:"clientTimestamp,omitempty"`
}

// UnmarshalJSON decodes a MatchEvent, restoring the Details variant from Type.
func (e *MatchEvent) UnmarshalJSON(b []byte) error {
	type plain MatchEvent
	aux := struct {
		*plain
		Details json.RawMessage `json:"details,omitempty"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := DecodeDetails(e.Type, aux.Details)
	if err != nil {
		return err
	}
	e.Details = d
	return nil
}
