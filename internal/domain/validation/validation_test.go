package validation_test

import (
	"strings"
	"testing"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/validation"
	. "github.com/smartystreets/goconvey/convey"
	"pgregory.net/rapid"
)

func goalForm() *model.EventEntryFormData {
	return &model.EventEntryFormData{
		MatchID:   "m1",
		EventType: model.EventGoal,
		TeamID:    "t1",
		Minute:    model.IntPtr(10),
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestValidator_Goal(t *testing.T) {
	Convey("Given a validator", t, func() {
		v := validation.New()

		Convey("When a goal is submitted without a player", func() {
			res := v.Validate(goalForm())

			Convey("Then it is invalid with a player-required error", func() {
				So(res.IsValid, ShouldBeFalse)
				So(containsSubstring(res.Errors, "playerId is required"), ShouldBeTrue)
			})
		})

		Convey("When the same goal names the scorer", func() {
			f := goalForm()
			f.PlayerID = "p7"
			res := v.Validate(f)

			Convey("Then it is valid and warns about the missing goal type", func() {
				So(res.IsValid, ShouldBeTrue)
				So(res.Errors, ShouldBeEmpty)
				So(containsSubstring(res.Warnings, "goalType"), ShouldBeTrue)
				So(containsSubstring(res.Suggestions, "location"), ShouldBeTrue)
			})
		})

		Convey("When the goal carries goal type and location", func() {
			f := goalForm()
			f.PlayerID = "p7"
			f.GoalType = "header"
			f.Location = "six_yard_box"
			res := v.Validate(f)

			Convey("Then there are no warnings or suggestions", func() {
				So(res.IsValid, ShouldBeTrue)
				So(res.Warnings, ShouldBeEmpty)
				So(res.Suggestions, ShouldBeEmpty)
			})
		})
	})
}

func TestValidator_Presence(t *testing.T) {
	Convey("Given an empty draft", t, func() {
		res := validation.New().Validate(&model.EventEntryFormData{})

		Convey("Then every presence rule reports, in order", func() {
			So(res.IsValid, ShouldBeFalse)
			So(res.Errors, ShouldResemble, []string{
				"matchId is required",
				"eventType is required",
				"teamId is required",
				"minute is required",
			})
		})
	})

	Convey("Given a nil draft", t, func() {
		res := validation.New().Validate(nil)
		So(res.IsValid, ShouldBeFalse)
		So(res.Errors, ShouldHaveLength, 1)
	})

	Convey("Given an unsupported event type", t, func() {
		f := goalForm()
		f.EventType = "bicycle_kick"
		res := validation.New().Validate(f)
		So(res.IsValid, ShouldBeFalse)
		So(containsSubstring(res.Errors, "not supported"), ShouldBeTrue)
	})
}

func TestValidator_MinuteBoundaries(t *testing.T) {
	Convey("Given a corner at various minutes", t, func() {
		v := validation.New()
		at := func(m int) model.ValidationResult {
			return v.Validate(&model.EventEntryFormData{MatchID: "m1", EventType: model.EventCorner, TeamID: "t1", Minute: model.IntPtr(m)})
		}

		So(at(-1).IsValid, ShouldBeFalse)
		So(at(121).IsValid, ShouldBeFalse)
		So(at(0).IsValid, ShouldBeTrue)
		So(at(120).IsValid, ShouldBeTrue)
	})
}

func TestValidator_TypeSpecific(t *testing.T) {
	Convey("Given a validator", t, func() {
		v := validation.New()
		base := func(tp model.EventType) *model.EventEntryFormData {
			return &model.EventEntryFormData{MatchID: "m1", EventType: tp, TeamID: "t1", Minute: model.IntPtr(30)}
		}

		Convey("Then an assist needs both players", func() {
			res := v.Validate(base(model.EventAssist))
			So(res.Errors, ShouldHaveLength, 2)

			f := base(model.EventAssist)
			f.PlayerID, f.SecondaryPlayerID = "p1", "p2"
			So(v.Validate(f).IsValid, ShouldBeTrue)
		})

		Convey("Then a substitution needs incoming and outgoing players", func() {
			f := base(model.EventSubstitution)
			f.PlayerID = "p14"
			res := v.Validate(f)
			So(res.IsValid, ShouldBeFalse)
			So(containsSubstring(res.Errors, "outgoing"), ShouldBeTrue)
		})

		Convey("Then cards need a player and warn without a card type", func() {
			So(v.Validate(base(model.EventYellowCard)).IsValid, ShouldBeFalse)

			f := base(model.EventRedCard)
			f.PlayerID = "p4"
			res := v.Validate(f)
			So(res.IsValid, ShouldBeTrue)
			So(containsSubstring(res.Warnings, "cardType"), ShouldBeTrue)
		})

		Convey("Then an injury warns without severity", func() {
			f := base(model.EventInjury)
			f.PlayerID = "p9"
			res := v.Validate(f)
			So(res.IsValid, ShouldBeTrue)
			So(containsSubstring(res.Warnings, "severity"), ShouldBeTrue)
		})

		Convey("Then a shot without shot type only gets a suggestion", func() {
			res := v.Validate(base(model.EventShot))
			So(res.IsValid, ShouldBeTrue)
			So(res.Warnings, ShouldBeEmpty)
			So(containsSubstring(res.Suggestions, "shotType"), ShouldBeTrue)
		})

		Convey("Then errors accumulate across rules", func() {
			f := base(model.EventGoal)
			f.MatchID = ""
			f.Minute = model.IntPtr(130)
			res := v.Validate(f)
			So(res.Errors, ShouldHaveLength, 3)
		})
	})
}

func TestValidator_Extensions(t *testing.T) {
	Convey("Given a validator bounded to two extension fields", t, func() {
		v := validation.New(validation.WithMaxExtensionFields(2))
		f := &model.EventEntryFormData{MatchID: "m1", EventType: model.EventOther, TeamID: "t1", Minute: model.IntPtr(5)}

		Convey("When the data map is within bounds", func() {
			f.Data = map[string]string{"weather": "rain", "var": "checked"}
			So(v.Validate(f).IsValid, ShouldBeTrue)
		})

		Convey("When the data map is too large", func() {
			f.Data = map[string]string{"a": "1", "b": "2", "c": "3"}
			So(v.Validate(f).IsValid, ShouldBeFalse)
		})

		Convey("When a value is too long", func() {
			f.Data = map[string]string{"note": strings.Repeat("x", 300)}
			So(v.Validate(f).IsValid, ShouldBeFalse)
		})
	})
}

func TestValidator_MinuteProperty(t *testing.T) {
	v := validation.New()
	rapid.Check(t, func(t *rapid.T) {
		m := rapid.IntRange(-500, 500).Draw(t, "minute")
		res := v.Validate(&model.EventEntryFormData{MatchID: "m", EventType: model.EventFoul, TeamID: "t", Minute: model.IntPtr(m)})
		want := m >= model.MinMinute && m <= model.MaxMinute
		if res.IsValid != want {
			t.Fatalf("minute %d: IsValid=%v, want %v (errors %v)", m, res.IsValid, want, res.Errors)
		}
	})
}

func TestValidator_Deterministic(t *testing.T) {
	v := validation.New()
	rapid.Check(t, func(t *rapid.T) {
		f := &model.EventEntryFormData{
			MatchID:   rapid.StringMatching(`m[0-9]?`).Draw(t, "match"),
			EventType: model.EventType(rapid.SampledFrom([]string{"goal", "assist", "substitution", "injury", "shot", "x"}).Draw(t, "type")),
			TeamID:    rapid.SampledFrom([]string{"", "home"}).Draw(t, "team"),
			PlayerID:  rapid.SampledFrom([]string{"", "p1"}).Draw(t, "player"),
			Minute:    model.IntPtr(rapid.IntRange(-5, 125).Draw(t, "minute")),
		}
		a, b := v.Validate(f), v.Validate(f)
		if a.IsValid != b.IsValid || strings.Join(a.Errors, "|") != strings.Join(b.Errors, "|") {
			t.Fatalf("validation is not deterministic: %v vs %v", a, b)
		}
		if a.IsValid != (len(a.Errors) == 0) {
			t.Fatalf("IsValid must mirror errors: %v", a)
		}
	})
}
