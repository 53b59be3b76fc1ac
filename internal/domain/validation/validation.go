// Package validation checks operator-submitted event drafts against the
// per-event-type rules. Validation is pure: no I/O, no state.
//
// Rules run in a fixed order and all applicable rules run; errors
// accumulate rather than short-circuit so a client can show every problem
// at once.
package validation

import (
	"fmt"
	"strings"

	"github.com/okian/touchline/internal/domain/model"
)

// Default bounds for the free-form extension map.
const (
	defaultMaxExtensionFields = 16
	maxExtensionKeyLen        = 64
	maxExtensionValueLen      = 256
)

// Validator validates event drafts.
type Validator struct {
	maxExtensionFields int
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithMaxExtensionFields bounds the number of keys accepted in the data map.
func WithMaxExtensionFields(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxExtensionFields = n
		}
	}
}

// New constructs a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{maxExtensionFields: defaultMaxExtensionFields}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks one event draft. The result is valid iff it carries no errors.
func (v *Validator) Validate(f *model.EventEntryFormData) model.ValidationResult {
	res := model.NewValidationResult()
	if f == nil {
		res.Errors = append(res.Errors, "event data is required")
		res.IsValid = false
		return res
	}

	res.Errors = append(res.Errors, checkPresence(f)...)
	res.Errors = append(res.Errors, checkMinute(f)...)
	res.Errors = append(res.Errors, v.checkExtensions(f.Data)...)
	res.Errors = append(res.Errors, checkRequiredByType(f)...)
	res.Warnings = append(res.Warnings, warningsByType(f)...)
	res.Suggestions = append(res.Suggestions, suggestionsByType(f)...)

	res.IsValid = len(res.Errors) == 0
	return res
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func checkPresence(f *model.EventEntryFormData) []string {
	var errs []string
	if blank(f.MatchID) {
		errs = append(errs, "matchId is required")
	}
	switch {
	case blank(string(f.EventType)):
		errs = append(errs, "eventType is required")
	case !f.EventType.Known():
		errs = append(errs, fmt.Sprintf("eventType %q is not supported", f.EventType))
	}
	if blank(f.TeamID) {
		errs = append(errs, "teamId is required")
	}
	return errs
}

func checkMinute(f *model.EventEntryFormData) []string {
	m, ok := f.MinuteValue()
	if !ok {
		return []string{"minute is required"}
	}
	if m < model.MinMinute || m > model.MaxMinute {
		return []string{fmt.Sprintf("minute must be between %d and %d", model.MinMinute, model.MaxMinute)}
	}
	return nil
}

func (v *Validator) checkExtensions(data map[string]string) []string {
	if len(data) == 0 {
		return nil
	}
	var errs []string
	if len(data) > v.maxExtensionFields {
		errs = append(errs, fmt.Sprintf("data may hold at most %d fields", v.maxExtensionFields))
	}
	var badKey, badValue bool
	for k, val := range data {
		badKey = badKey || blank(k) || len(k) > maxExtensionKeyLen
		badValue = badValue || len(val) > maxExtensionValueLen
	}
	if badKey {
		errs = append(errs, fmt.Sprintf("data keys must be 1-%d characters", maxExtensionKeyLen))
	}
	if badValue {
		errs = append(errs, fmt.Sprintf("data values must be at most %d characters", maxExtensionValueLen))
	}
	return errs
}

func checkRequiredByType(f *model.EventEntryFormData) []string {
	var errs []string
	switch f.EventType {
	case model.EventGoal, model.EventYellowCard, model.EventRedCard, model.EventInjury:
		if blank(f.PlayerID) {
			errs = append(errs, fmt.Sprintf("playerId is required for %s", f.EventType))
		}
	case model.EventAssist:
		if blank(f.PlayerID) {
			errs = append(errs, "playerId is required for assist")
		}
		if blank(f.SecondaryPlayerID) {
			errs = append(errs, "secondaryPlayerId is required for assist")
		}
	case model.EventSubstitution:
		if blank(f.PlayerID) {
			errs = append(errs, "playerId (incoming player) is required for substitution")
		}
		if blank(f.SecondaryPlayerID) {
			errs = append(errs, "secondaryPlayerId (outgoing player) is required for substitution")
		}
	}
	return errs
}

func warningsByType(f *model.EventEntryFormData) []string {
	switch f.EventType {
	case model.EventGoal:
		if blank(f.GoalType) {
			return []string{"goalType is recommended for goal"}
		}
	case model.EventYellowCard, model.EventRedCard:
		if blank(f.CardType) {
			return []string{fmt.Sprintf("cardType is recommended for %s", f.EventType)}
		}
	case model.EventInjury:
		if blank(f.Severity) {
			return []string{"severity is recommended for injury"}
		}
	}
	return nil
}

func suggestionsByType(f *model.EventEntryFormData) []string {
	switch f.EventType {
	case model.EventGoal:
		if blank(f.Location) {
			return []string{"add location for better statistics"}
		}
	case model.EventShot:
		if blank(f.ShotType) {
			return []string{"add shotType for better statistics"}
		}
	}
	return nil
}
