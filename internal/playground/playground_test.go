package playground

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/flames/internal/adapters/apiclient"
	"github.com/okian/flames/internal/adapters/kvstore"
	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/internal/domain/model"
)

var errSignedOut = errors.New("not authenticated")

type fakeSessions struct{ user *model.User }

func (f fakeSessions) RequireUser(context.Context) (*model.User, error) {
	if f.user == nil {
		return nil, errSignedOut
	}
	return f.user, nil
}

type fakeAPI struct {
	generated   []model.GenerateRequest
	tokens      []string
	generateErr error
	response    string
	listed      []model.InteractionFilter
	store       []model.Interaction
}

func (f *fakeAPI) Generate(_ context.Context, token string, req model.GenerateRequest) (model.Interaction, error) {
	f.tokens = append(f.tokens, token)
	f.generated = append(f.generated, req)
	if f.generateErr != nil {
		return model.Interaction{}, f.generateErr
	}
	response := f.response
	if response == "" {
		response = "<b>Model cards</b> describe a model &amp; its limits"
	}
	it := model.Interaction{ID: "i1", UserEmail: "a@x.io", Blind: req.Blind, Prompt: req.Prompt, Response: response}
	f.store = append(f.store, it)
	return it, nil
}

func (f *fakeAPI) ListInteractions(_ context.Context, _ string, filter model.InteractionFilter) ([]model.Interaction, error) {
	f.listed = append(f.listed, filter)
	return f.store, nil
}

func newKV(t *testing.T) *kvstore.FileStore {
	kv, err := kvstore.New(t.TempDir())
	So(err, ShouldBeNil)
	return kv
}

func TestSubmit(t *testing.T) {
	Convey("Given a signed-in participant", t, func() {
		ctx := context.Background()
		api := &fakeAPI{}
		kv := newKV(t)
		bus := eventbus.New()
		user := &model.User{ID: "u1", Email: "a@x.io", Token: "tok"}
		p := New(api, fakeSessions{user: user}, kv, WithBus(bus))

		var states []State
		bus.Subscribe(eventbus.TopicPlayground, func(_ context.Context, e eventbus.Event) {
			states = append(states, e.Payload.(Snapshot).State)
		})

		So(p.State(), ShouldEqual, StateIdle)

		Convey("a successful submission records the latest interaction", func() {
			err := p.Submit(ctx, Request{Prompt: "Explain model cards", Blind: model.BlindAlpha, ExerciseID: "E1"})
			So(err, ShouldBeNil)

			So(states, ShouldResemble, []State{StateSubmitting, StateSuccess})
			So(api.tokens, ShouldResemble, []string{"tok"})
			So(api.generated[0], ShouldResemble, model.GenerateRequest{Prompt: "Explain model cards", Blind: "alpha", ExerciseID: "E1"})
			So(api.listed, ShouldResemble, []model.InteractionFilter{{UserEmail: "a@x.io"}})

			latest, ok := p.Latest(ctx)
			So(ok, ShouldBeTrue)
			So(latest.ID, ShouldEqual, "i1")
			So(p.Interactions(), ShouldHaveLength, 1)
			So(p.Display(), ShouldEqual, "<b>Model cards</b> describe a model &amp; its limits")
			So(p.Sanitized(), ShouldEqual, "Model cards describe a model & its limits")

			Convey("and a new process still sees it", func() {
				again := New(api, fakeSessions{user: user}, kv)
				latest, ok := again.Latest(ctx)
				So(ok, ShouldBeTrue)
				So(latest.ID, ShouldEqual, "i1")

				So(again.Forget(ctx), ShouldBeNil)
				_, ok = New(api, fakeSessions{user: user}, kv).Latest(ctx)
				So(ok, ShouldBeFalse)
			})

			Convey("and another user never sees it", func() {
				other := &model.User{ID: "u2", Email: "b@x.io", Token: "tok2"}
				_, ok := New(api, fakeSessions{user: other}, kv).Latest(ctx)
				So(ok, ShouldBeFalse)

				_, ok = New(api, fakeSessions{}, kv).Latest(ctx)
				So(ok, ShouldBeFalse)
			})

			Convey("and reconciling with the same user keeps it", func() {
				So(p.Reconcile(ctx, &model.User{Email: "A@x.io"}), ShouldBeNil)
				_, ok := p.Latest(ctx)
				So(ok, ShouldBeTrue)
				_, found, _ := kv.Get(ctx, KeyLatest)
				So(found, ShouldBeTrue)
			})

			Convey("and reconciling with another user drops it", func() {
				So(p.Reconcile(ctx, &model.User{Email: "b@x.io"}), ShouldBeNil)
				_, found, _ := kv.Get(ctx, KeyLatest)
				So(found, ShouldBeFalse)
				_, ok := p.Latest(ctx)
				So(ok, ShouldBeFalse)
			})

			Convey("and signing out elsewhere drops it", func() {
				again := New(api, fakeSessions{user: user}, kv)
				So(again.Reconcile(ctx, nil), ShouldBeNil)
				_, ok := p.Latest(ctx)
				So(ok, ShouldBeTrue)
				_, ok = New(api, fakeSessions{user: user}, kv).Latest(ctx)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("model output is shown verbatim", func() {
			api.response = "Wrap it in a <div> tag and call List<T>() when a < b.\n\tdone\x1b[2J\a"
			So(p.Submit(ctx, Request{Prompt: "hi", Blind: model.BlindAlpha}), ShouldBeNil)
			So(p.Display(), ShouldEqual, "Wrap it in a <div> tag and call List<T>() when a < b.\n\tdone[2J")
			So(p.Response(), ShouldEqual, api.response)
		})

		Convey("a failed submission shows the server text", func() {
			api.generateErr = &apiclient.RequestError{Status: 502, Body: "provider unavailable"}
			err := p.Submit(ctx, Request{Prompt: "hi", Blind: model.BlindBeta})

			So(err, ShouldNotBeNil)
			So(p.State(), ShouldEqual, StateFailure)
			So(p.Response(), ShouldEqual, "provider unavailable")
			So(states, ShouldResemble, []State{StateSubmitting, StateFailure})
			_, ok := p.Latest(ctx)
			So(ok, ShouldBeFalse)
		})

		Convey("custom submissions carry and persist endpoint and credential", func() {
			err := p.Submit(ctx, Request{Prompt: "hi", Blind: model.BlindCustom, CustomEndpoint: "https://my.model/gen", CustomKey: "sk-1"})
			So(err, ShouldBeNil)
			So(api.generated[0].CustomEndpoint, ShouldEqual, "https://my.model/gen")
			So(api.generated[0].CustomKey, ShouldEqual, "sk-1")

			d := New(api, fakeSessions{user: user}, kv).Defaults(ctx)
			So(d.CustomEndpoint, ShouldEqual, "https://my.model/gen")
			So(d.CustomKey, ShouldEqual, "sk-1")
		})

		Convey("custom fields are not sent for named blinds", func() {
			So(p.Submit(ctx, Request{Prompt: "hi", Blind: model.BlindAlpha, CustomEndpoint: "https://x.io", CustomKey: "k"}), ShouldBeNil)
			So(api.generated[0].CustomEndpoint, ShouldBeEmpty)
			So(api.generated[0].CustomKey, ShouldBeEmpty)
			_, found, _ := kv.Get(ctx, KeyCustomKey)
			So(found, ShouldBeFalse)
		})

		Convey("invalid input is rejected before any call", func() {
			err := p.Submit(ctx, Request{Prompt: "  ", Blind: "gamma"})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "prompt is required")
			So(api.generated, ShouldBeEmpty)
			So(p.State(), ShouldEqual, StateIdle)
		})
	})

	Convey("Without a session nothing is sent", t, func() {
		api := &fakeAPI{}
		p := New(api, fakeSessions{}, newKV(t))
		err := p.Submit(context.Background(), Request{Prompt: "hi", Blind: model.BlindAlpha})
		So(errors.Is(err, errSignedOut), ShouldBeTrue)
		So(api.generated, ShouldBeEmpty)
	})
}

func TestDefaults(t *testing.T) {
	Convey("Given a fresh state directory", t, func() {
		ctx := context.Background()
		kv := newKV(t)
		p := New(&fakeAPI{}, fakeSessions{}, kv)

		Convey("the form starts from the built-in defaults", func() {
			d := p.Defaults(ctx)
			So(d.Prompt, ShouldEqual, DefaultPrompt)
			So(d.Blind, ShouldEqual, model.BlindAlpha)
			So(d.CustomEndpoint, ShouldEqual, DefaultCustomEndpoint)
			So(d.ExerciseID, ShouldBeEmpty)
		})

		Convey("a selected exercise is attached", func() {
			ex := &model.Exercise{ID: "E1", Title: "Safety", EndDate: null.StringFrom("2030-01-01")}
			So(p.SelectExercise(ctx, ex), ShouldBeNil)
			So(p.SelectedExercise(ctx).Title, ShouldEqual, "Safety")
			So(p.Defaults(ctx).ExerciseID, ShouldEqual, "E1")

			So(p.SelectExercise(ctx, nil), ShouldBeNil)
			So(p.SelectedExercise(ctx), ShouldBeNil)
		})

		Convey("an unreadable selection is ignored", func() {
			So(kv.Set(ctx, KeySelectedExercise, "null"), ShouldBeNil)
			So(p.SelectedExercise(ctx), ShouldBeNil)
			So(kv.Set(ctx, KeySelectedExercise, "{oops"), ShouldBeNil)
			So(p.SelectedExercise(ctx), ShouldBeNil)
		})
	})
}
