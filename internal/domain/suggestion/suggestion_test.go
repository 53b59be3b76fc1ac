package suggestion_test

import (
	"testing"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/suggestion"
	"github.com/smartystreets/goconvey/convey"
)

func TestEngine_Suggest(t *testing.T) {
	convey.Convey("Given a suggestion engine", t, func() {
		e := suggestion.New()

		convey.Convey("When asking about a goal with no context", func() {
			got := e.Suggest("m1", model.EventGoal, nil)

			convey.Convey("Then location and goal type are suggested in table order", func() {
				convey.So(got, convey.ShouldHaveLength, 3)
				convey.So(got[0], convey.ShouldContainSubstring, "location")
				convey.So(got[1], convey.ShouldContainSubstring, "goal type")
			})
		})

		convey.Convey("When the location is already filled", func() {
			got := e.Suggest("m1", model.EventGoal, map[string]string{"location": "box"})
			convey.So(got, convey.ShouldHaveLength, 2)
			convey.So(got[0], convey.ShouldContainSubstring, "goal type")
		})

		convey.Convey("When asking about a substitution", func() {
			convey.So(e.Suggest("m1", model.EventSubstitution, nil), convey.ShouldResemble, []string{"substitution reason"})
		})

		convey.Convey("When the event type has no hints", func() {
			got := e.Suggest("m1", model.EventCorner, nil)
			convey.So(got, convey.ShouldNotBeNil)
			convey.So(got, convey.ShouldBeEmpty)
		})
	})
}

func TestContextFromForm(t *testing.T) {
	convey.Convey("Given a draft with some optional fields", t, func() {
		f := &model.EventEntryFormData{EventType: model.EventShot, ShotType: "on_target"}
		ctx := suggestion.ContextFromForm(f)

		convey.So(ctx, convey.ShouldResemble, map[string]string{"shotType": "on_target"})
		convey.So(suggestion.New().Suggest("m1", model.EventShot, ctx), convey.ShouldResemble, []string{"shot location"})
		convey.So(suggestion.ContextFromForm(nil), convey.ShouldBeNil)
	})
}
