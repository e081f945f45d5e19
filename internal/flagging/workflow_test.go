package flagging

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/flames/internal/adapters/apiclient"
	"github.com/okian/flames/internal/domain/model"
)

type fakeAPI struct {
	sent  []model.NewFlag
	token string
	err   error
}

func (f *fakeAPI) CreateFlag(_ context.Context, token string, nf model.NewFlag) (model.Flag, error) {
	f.sent = append(f.sent, nf)
	f.token = token
	if f.err != nil {
		return model.Flag{}, f.err
	}
	return model.Flag{ID: "F1", InteractionID: nf.InteractionID, Category: nf.Category, Severity: nf.Severity, Status: model.FlagOpen}, nil
}

type fakeSessions struct{ user *model.User }

func (f fakeSessions) RequireUser(context.Context) (*model.User, error) {
	if f.user == nil {
		return nil, errors.New("not authenticated")
	}
	return f.user, nil
}

type fakeSource struct{ latest *model.Interaction }

func (f fakeSource) Latest(context.Context) (model.Interaction, bool) {
	if f.latest == nil {
		return model.Interaction{}, false
	}
	return *f.latest, true
}

func TestSubmit(t *testing.T) {
	Convey("Given a signed-in participant", t, func() {
		ctx := context.Background()
		api := &fakeAPI{}
		sessions := fakeSessions{user: &model.User{ID: "u1", Email: "a@x.io", Token: "tok"}}

		Convey("with no interaction yet, nothing is sent", func() {
			w := New(api, sessions, fakeSource{}, nil)
			_, err := w.Submit(ctx, Form{Category: model.CategoryMisinformation, Severity: 5})
			So(errors.Is(err, ErrNoInteraction), ShouldBeTrue)
			So(api.sent, ShouldBeEmpty)
		})

		Convey("with a latest interaction", func() {
			w := New(api, sessions, fakeSource{latest: &model.Interaction{ID: "i42"}}, nil)

			Convey("the flag references it and carries the bearer token", func() {
				flag, err := w.Submit(ctx, Form{Category: model.CategoryFactualError, Severity: 3, Comments: "  wrong date "})
				So(err, ShouldBeNil)
				So(flag.ID, ShouldEqual, "F1")
				So(api.token, ShouldEqual, "tok")
				So(api.sent[0], ShouldResemble, model.NewFlag{
					InteractionID: "i42",
					UserEmail:     "a@x.io",
					Category:      model.CategoryFactualError,
					Severity:      3,
					Comments:      "wrong date",
				})
			})

			Convey("severity is clamped into range", func() {
				_, err := w.Submit(ctx, Form{Category: model.CategoryOffTopic, Severity: 42})
				So(err, ShouldBeNil)
				So(api.sent[0].Severity, ShouldEqual, model.MaxSeverity)

				_, err = w.Submit(ctx, Form{Category: model.CategoryOffTopic, Severity: -1})
				So(err, ShouldBeNil)
				So(api.sent[1].Severity, ShouldEqual, model.MinSeverity)
			})

			Convey("unknown categories are rejected locally", func() {
				_, err := w.Submit(ctx, Form{Category: "Spam", Severity: 5})
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(api.sent, ShouldBeEmpty)
			})

			Convey("backend errors surface the server text", func() {
				api.err = &apiclient.RequestError{Status: 404, Body: "interaction not found"}
				_, err := w.Submit(ctx, Form{Category: model.CategoryBias, Severity: 5})
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "interaction not found")
				So(apiclient.IsNotFound(err), ShouldBeTrue)
			})
		})
	})
}

func TestSubmitSignedOut(t *testing.T) {
	Convey("Given no session", t, func() {
		api := &fakeAPI{}
		w := New(api, fakeSessions{}, fakeSource{latest: &model.Interaction{ID: "i1"}}, nil)

		_, err := w.Submit(context.Background(), Form{Category: model.CategoryBias, Severity: 5})
		So(err, ShouldNotBeNil)
		So(errors.Is(err, ErrNoInteraction), ShouldBeFalse)
		So(api.sent, ShouldBeEmpty)
	})
}
