package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
	model "github.com/okian/flames/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSeverity(t *testing.T) {
	convey.Convey("Given severity input from a form", t, func() {
		convey.Convey("When the value is inside the range", func() {
			convey.So(model.NewSeverity(1), convey.ShouldEqual, 1)
			convey.So(model.NewSeverity(7), convey.ShouldEqual, 7)
			convey.So(model.NewSeverity(10), convey.ShouldEqual, 10)
		})

		convey.Convey("When the value is outside the range", func() {
			convey.Convey("Then it should be clamped", func() {
				convey.So(model.NewSeverity(0), convey.ShouldEqual, model.MinSeverity)
				convey.So(model.NewSeverity(-42), convey.ShouldEqual, model.MinSeverity)
				convey.So(model.NewSeverity(11), convey.ShouldEqual, model.MaxSeverity)
				convey.So(model.NewSeverity(1<<20), convey.ShouldEqual, model.MaxSeverity)
			})
		})
	})
}

func TestCategory(t *testing.T) {
	convey.Convey("Given the flag categories", t, func() {
		convey.So(len(model.Categories), convey.ShouldEqual, 7)
		for _, c := range model.Categories {
			convey.So(c.Valid(), convey.ShouldBeTrue)
		}
		convey.So(model.Category("Spam").Valid(), convey.ShouldBeFalse)
		convey.So(model.Category("").Valid(), convey.ShouldBeFalse)

		convey.Convey("When parsing user input", func() {
			c, ok := model.ParseCategory("  factual error ")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(c, convey.ShouldEqual, model.CategoryFactualError)

			_, ok = model.ParseCategory("spam")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestRole(t *testing.T) {
	convey.Convey("Given role input", t, func() {
		convey.So(model.ParseRole("Admin"), convey.ShouldEqual, model.RoleAdmin)
		convey.So(model.ParseRole(" participant "), convey.ShouldEqual, model.RoleParticipant)
		convey.So(model.ParseRole("root"), convey.ShouldEqual, model.RoleParticipant)

		var nilUser *model.User
		convey.So(nilUser.IsAdmin(), convey.ShouldBeFalse)
		convey.So((&model.User{Role: model.RoleAdmin}).IsAdmin(), convey.ShouldBeTrue)
	})
}

func TestUserJSON(t *testing.T) {
	convey.Convey("Given a stored session payload", t, func() {
		convey.Convey("When team_id is null", func() {
			var u model.User
			err := json.Unmarshal([]byte(`{"id":"u1","email":"a@b.c","role":"participant","token":"t","team_id":null}`), &u)

			convey.Convey("Then the team should be absent", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(u.TeamID.Valid, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When joining a team", func() {
			u := model.User{ID: "u1", Email: "a@b.c"}
			joined := u.WithTeam("T1")

			convey.Convey("Then only the copy should carry the team", func() {
				convey.So(joined.TeamID, convey.ShouldResemble, null.StringFrom("T1"))
				convey.So(u.TeamID.Valid, convey.ShouldBeFalse)
			})
		})
	})
}

func TestExerciseEndTime(t *testing.T) {
	convey.Convey("Given exercises with various end dates", t, func() {
		dated := model.Exercise{EndDate: null.StringFrom("2025-12-31")}
		rolling := model.Exercise{EndDate: null.StringFrom("Rolling")}
		open := model.Exercise{}

		end, ok := dated.EndTime()
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(end, convey.ShouldEqual, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))

		_, ok = rolling.EndTime()
		convey.So(ok, convey.ShouldBeFalse)

		_, ok = open.EndTime()
		convey.So(ok, convey.ShouldBeFalse)
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given payloads to validate", t, func() {
		convey.Convey("When a flag is well formed", func() {
			err := model.Validate(model.NewFlag{
				InteractionID: "i1",
				Category:      model.CategoryFactualError,
				Severity:      model.NewSeverity(4),
			})
			convey.So(err, convey.ShouldBeNil)
		})

		convey.Convey("When a flag has an unknown category and no interaction", func() {
			err := model.Validate(model.NewFlag{Category: "Spam", Severity: 3})

			convey.Convey("Then both fields should be reported", func() {
				convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "interaction_id is required")
				convey.So(err.Error(), convey.ShouldContainSubstring, "category must be one of")
			})
		})

		convey.Convey("When a flag severity was built without NewSeverity", func() {
			err := model.Validate(model.NewFlag{InteractionID: "i1", Category: model.CategoryBias, Severity: 0})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "severity must be at least 1")
		})

		convey.Convey("When a generation targets an unknown blind slot", func() {
			err := model.Validate(model.GenerateRequest{Prompt: "hi", Blind: "gamma"})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "blind must be one of alpha, beta, custom")
		})

		convey.Convey("When credentials carry a bad email", func() {
			err := model.Validate(model.Credentials{Email: "nope", Password: "x"})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "email must be a valid email address")
		})

		convey.Convey("When an exercise end date is malformed", func() {
			err := model.Validate(model.NewExercise{Title: "t", EndDate: "31/12/2025"})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "end_date")
		})
	})
}

func TestInteractionFilter(t *testing.T) {
	convey.Convey("Given an interaction filter", t, func() {
		q := model.InteractionFilter{TeamID: "T1"}.Query()
		convey.So(q["team_id"], convey.ShouldEqual, "T1")
		convey.So(q["user_email"], convey.ShouldEqual, "")
	})
}
