// Package suggestion provides advisory "what else should I fill in" hints
// per event type. It is a pure lookup table.
package suggestion

import (
	"strings"

	"github.com/okian/touchline/internal/domain/model"
)

// hint is one advisory line tied to the form field that would satisfy it.
type hint struct {
	field string
	text  string
}

var table = map[model.EventType][]hint{
	model.EventGoal: {
		{field: "location", text: "location for better statistics"},
		{field: "goalType", text: "goal type (open play, header, penalty, free kick)"},
		{field: "secondaryPlayerId", text: "assisting player"},
	},
	model.EventOwnGoal: {
		{field: "location", text: "location for better statistics"},
	},
	model.EventAssist: {
		{field: "description", text: "assist type (pass, cross, rebound)"},
	},
	model.EventShot: {
		{field: "shotType", text: "shot type (on target, off target, blocked)"},
		{field: "location", text: "shot location"},
	},
	model.EventSave: {
		{field: "saveType", text: "save type (catch, parry, punch)"},
	},
	model.EventYellowCard: {
		{field: "cardType", text: "card reason"},
	},
	model.EventRedCard: {
		{field: "cardType", text: "card reason (straight red or second yellow)"},
	},
	model.EventSubstitution: {
		{field: "substitutionType", text: "substitution reason"},
	},
	model.EventFoul: {
		{field: "location", text: "foul location"},
		{field: "description", text: "foul description"},
	},
	model.EventInjury: {
		{field: "severity", text: "injury severity"},
		{field: "description", text: "injury description"},
	},
	model.EventPenalty: {
		{field: "shotType", text: "penalty outcome"},
	},
	model.EventFreeKick: {
		{field: "location", text: "free kick location"},
	},
}

// Engine serves suggestions. The zero value is ready to use.
type Engine struct{}

// New constructs an Engine.
func New() *Engine { return &Engine{} }

// Suggest returns the hints for eventType, skipping any whose field is
// already filled in context. matchID is accepted for parity with the
// transport contract; the table is not match-specific.
func (e *Engine) Suggest(_ string, eventType model.EventType, context map[string]string) []string {
	hints := table[eventType]
	out := make([]string, 0, len(hints))
	for _, h := range hints {
		if v, ok := context[h.field]; ok && strings.TrimSpace(v) != "" {
			continue
		}
		out = append(out, h.text)
	}
	return out
}

// ContextFromForm lists the filled optional fields of a draft, keyed the
// same way as the hint table.
func ContextFromForm(f *model.EventEntryFormData) map[string]string {
	if f == nil {
		return nil
	}
	ctx := map[string]string{
		"location":          f.Location,
		"goalType":          f.GoalType,
		"shotType":          f.ShotType,
		"saveType":          f.SaveType,
		"cardType":          f.CardType,
		"severity":          f.Severity,
		"substitutionType":  f.SubstitutionType,
		"description":       f.Description,
		"secondaryPlayerId": f.SecondaryPlayerID,
	}
	for k, v := range ctx {
		if v == "" {
			delete(ctx, k)
		}
	}
	return ctx
}
