package stubapi_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/flames/internal/adapters/http/stubapi"
	"github.com/okian/flames/internal/domain/model"
)

type client struct {
	t    *testing.T
	base string
}

func (c client) do(method, path, token string, body any) (int, []byte) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		So(err, ShouldBeNil)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	So(err, ShouldBeNil)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (c client) signup(email string, role model.Role) model.User {
	status, body := c.do(http.MethodPost, "/auth/signup", "", model.Credentials{Email: email, Password: "pw", Role: role})
	So(status, ShouldEqual, http.StatusCreated)
	var u model.User
	So(json.Unmarshal(body, &u), ShouldBeNil)
	return u
}

func newStub(t *testing.T) (client, *stubapi.Server) {
	srv := stubapi.NewServer(stubapi.WithBcryptCost(bcrypt.MinCost), stubapi.WithSecret("test-secret"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return client{t: t, base: ts.URL}, srv
}

func TestAuth(t *testing.T) {
	Convey("Given the stub backend", t, func() {
		c, _ := newStub(t)

		Convey("health is reported", func() {
			status, body := c.do(http.MethodGet, "/healthz", "", nil)
			So(status, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `"ok"`)
		})

		Convey("signup issues a verifiable token", func() {
			u := c.signup("alice@example.com", "")
			So(u.ID, ShouldNotBeEmpty)
			So(u.Role, ShouldEqual, model.RoleParticipant)
			So(u.Token, ShouldNotBeEmpty)

			signer := stubapi.NewSigner("test-secret", 0)
			claims, err := signer.Parse(u.Token)
			So(err, ShouldBeNil)
			So(claims.Email, ShouldEqual, "alice@example.com")

			_, err = stubapi.NewSigner("other", 0).Parse(u.Token)
			So(err, ShouldNotBeNil)
		})

		Convey("login checks the password", func() {
			c.signup("alice@example.com", model.RoleAdmin)

			status, body := c.do(http.MethodPost, "/auth/login", "", model.Credentials{Email: "alice@example.com", Password: "pw"})
			So(status, ShouldEqual, http.StatusOK)
			var u model.User
			So(json.Unmarshal(body, &u), ShouldBeNil)
			So(u.Role, ShouldEqual, model.RoleAdmin)

			status, body = c.do(http.MethodPost, "/auth/login", "", model.Credentials{Email: "alice@example.com", Password: "nope"})
			So(status, ShouldEqual, http.StatusUnauthorized)
			So(string(body), ShouldContainSubstring, "invalid credentials")
		})

		Convey("duplicate and malformed signups are rejected", func() {
			c.signup("alice@example.com", "")
			status, _ := c.do(http.MethodPost, "/auth/signup", "", model.Credentials{Email: "ALICE@example.com", Password: "pw"})
			So(status, ShouldEqual, http.StatusConflict)

			status, body := c.do(http.MethodPost, "/auth/signup", "", model.Credentials{Email: "not-an-email", Password: "pw"})
			So(status, ShouldEqual, http.StatusBadRequest)
			So(string(body), ShouldContainSubstring, "email must be a valid email address")
		})
	})
}

func TestAuthorization(t *testing.T) {
	Convey("Given a participant and an admin", t, func() {
		c, _ := newStub(t)
		participant := c.signup("p@x.io", model.RoleParticipant)
		admin := c.signup("root@x.io", model.RoleAdmin)
		ex := model.NewExercise{Title: "Jailbreaks"}

		Convey("admin routes require the admin role", func() {
			status, _ := c.do(http.MethodPost, "/exercises", "", ex)
			So(status, ShouldEqual, http.StatusUnauthorized)
			status, body := c.do(http.MethodPost, "/exercises", participant.Token, ex)
			So(status, ShouldEqual, http.StatusForbidden)
			So(string(body), ShouldContainSubstring, "admins only")
			status, _ = c.do(http.MethodGet, "/admin/analytics", participant.Token, nil)
			So(status, ShouldEqual, http.StatusForbidden)

			status, _ = c.do(http.MethodPost, "/exercises", admin.Token, ex)
			So(status, ShouldEqual, http.StatusCreated)
		})

		Convey("a forged token is ignored", func() {
			status, _ := c.do(http.MethodPost, "/api/generate", "forged.token.value", model.GenerateRequest{Prompt: "hi", Blind: "alpha"})
			So(status, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("deleting an exercise twice yields 404", func() {
			_, body := c.do(http.MethodPost, "/exercises", admin.Token, ex)
			var created model.Exercise
			So(json.Unmarshal(body, &created), ShouldBeNil)

			status, _ := c.do(http.MethodDelete, "/exercises/"+created.ID, admin.Token, nil)
			So(status, ShouldEqual, http.StatusOK)
			status, _ = c.do(http.MethodDelete, "/exercises/"+created.ID, admin.Token, nil)
			So(status, ShouldEqual, http.StatusNotFound)
		})

		Convey("participants cannot join teams for others", func() {
			_, body := c.do(http.MethodPost, "/teams", participant.Token, map[string]string{"name": "Red"})
			var team model.Team
			So(json.Unmarshal(body, &team), ShouldBeNil)

			status, _ := c.do(http.MethodPost, "/teams/join", participant.Token, model.JoinRequest{TeamID: team.ID, UserEmail: "root@x.io"})
			So(status, ShouldEqual, http.StatusForbidden)
			status, _ = c.do(http.MethodPost, "/teams/join", participant.Token, model.JoinRequest{TeamID: "missing", UserEmail: "p@x.io"})
			So(status, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGenerateAndFlags(t *testing.T) {
	Convey("Given a participant in a team", t, func() {
		c, srv := newStub(t)
		admin := c.signup("root@x.io", model.RoleAdmin)
		p := c.signup("p@x.io", model.RoleParticipant)

		_, body := c.do(http.MethodPost, "/teams", p.Token, map[string]string{"name": "Red"})
		var team model.Team
		So(json.Unmarshal(body, &team), ShouldBeNil)
		status, _ := c.do(http.MethodPost, "/teams/join", p.Token, model.JoinRequest{TeamID: team.ID, UserEmail: p.Email})
		So(status, ShouldEqual, http.StatusOK)

		c.do(http.MethodPost, "/model-mappings", admin.Token, model.ModelMapping{Blind: "alpha", Provider: "OpenAI", Model: "gpt-4o-mini"})

		generate := func(req model.GenerateRequest) (int, model.Interaction) {
			status, body := c.do(http.MethodPost, "/api/generate", p.Token, req)
			var it model.Interaction
			_ = json.Unmarshal(body, &it)
			return status, it
		}

		Convey("generation resolves the blind label on the server only", func() {
			status, body := c.do(http.MethodPost, "/api/generate", p.Token, model.GenerateRequest{Prompt: "Explain model cards", Blind: "alpha", ExerciseID: "E1"})
			So(status, ShouldEqual, http.StatusOK)
			So(string(body), ShouldNotContainSubstring, `"provider"`)
			So(string(body), ShouldNotContainSubstring, `"model"`)
			var it model.Interaction
			So(json.Unmarshal(body, &it), ShouldBeNil)
			So(it.ID, ShouldNotBeEmpty)
			So(it.Blind, ShouldEqual, "alpha")
			So(it.TeamID, ShouldEqual, team.ID)
			So(it.UserEmail, ShouldEqual, "p@x.io")
			So(it.Response, ShouldStartWith, "Demo response from Model Alpha")

			_, it = generate(model.GenerateRequest{Prompt: "x", Blind: "custom", CustomEndpoint: "https://my.model/gen"})
			So(it.Provider, ShouldBeEmpty)
			So(it.Model, ShouldBeEmpty)

			status, _ = generate(model.GenerateRequest{Prompt: "x", Blind: "custom"})
			So(status, ShouldEqual, http.StatusBadRequest)

			status, body = c.do(http.MethodGet, "/interactions?team_id="+team.ID, p.Token, nil)
			So(status, ShouldEqual, http.StatusOK)
			So(string(body), ShouldNotContainSubstring, `"provider"`)
			var list []model.Interaction
			So(json.Unmarshal(body, &list), ShouldBeNil)
			So(list, ShouldHaveLength, 2)

			stored := srv.Store().Interactions(model.InteractionFilter{TeamID: team.ID})
			So(stored[0].Provider, ShouldEqual, "OpenAI")
			So(stored[0].Model, ShouldEqual, "gpt-4o-mini")
			So(stored[1].Provider, ShouldEqual, "Custom")
			So(stored[1].Model, ShouldEqual, "byo")

			status, body = c.do(http.MethodGet, "/interactions?team_id="+team.ID, admin.Token, nil)
			So(status, ShouldEqual, http.StatusOK)
			list = nil
			So(json.Unmarshal(body, &list), ShouldBeNil)
			So(list[0].Model, ShouldEqual, "gpt-4o-mini")

			So(srv.Store().Analytics().Interactions, ShouldEqual, 2)
		})

		Convey("flags are created open and resolved once", func() {
			_, it := generate(model.GenerateRequest{Prompt: "x", Blind: "beta"})
			So(it.Provider, ShouldBeEmpty)

			status, body := c.do(http.MethodPost, "/flags", p.Token, model.NewFlag{InteractionID: it.ID, Category: model.CategoryMisinformation, Severity: 4})
			So(status, ShouldEqual, http.StatusCreated)
			var f model.Flag
			So(json.Unmarshal(body, &f), ShouldBeNil)
			So(f.Status, ShouldEqual, model.FlagOpen)
			So(f.UserEmail, ShouldEqual, "p@x.io")

			status, _ = c.do(http.MethodPost, "/flags", p.Token, model.NewFlag{InteractionID: "nope", Category: model.CategoryMisinformation, Severity: 4})
			So(status, ShouldEqual, http.StatusNotFound)
			status, _ = c.do(http.MethodPost, "/flags", p.Token, model.NewFlag{InteractionID: it.ID, Category: "Spam", Severity: 4})
			So(status, ShouldEqual, http.StatusBadRequest)

			So(srv.Store().Analytics().OpenFlags, ShouldEqual, 1)
			status, _ = c.do(http.MethodPost, "/flags/"+f.ID+"/resolve", admin.Token, nil)
			So(status, ShouldEqual, http.StatusOK)
			status, _ = c.do(http.MethodPost, "/flags/"+f.ID+"/resolve", admin.Token, nil)
			So(status, ShouldEqual, http.StatusConflict)
			So(srv.Store().Analytics().OpenFlags, ShouldEqual, 0)
		})

		Convey("exports contain every interaction", func() {
			generate(model.GenerateRequest{Prompt: "one, with comma", Blind: "alpha"})
			generate(model.GenerateRequest{Prompt: "two", Blind: "beta"})

			status, body := c.do(http.MethodGet, "/export/csv", admin.Token, nil)
			So(status, ShouldEqual, http.StatusOK)
			rows, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[0], ShouldResemble, []string{"ts", "user", "blind", "provider", "model", "prompt", "response"})
			So(rows[1][3:6], ShouldResemble, []string{"OpenAI", "gpt-4o-mini", "one, with comma"})

			status, body = c.do(http.MethodGet, "/export/json", admin.Token, nil)
			So(status, ShouldEqual, http.StatusOK)
			var payload map[string]json.RawMessage
			So(json.Unmarshal(body, &payload), ShouldBeNil)
			for _, key := range []string{"interactions", "flags", "exercises", "models"} {
				So(payload, ShouldContainKey, key)
			}
		})

		Convey("metrics are exposed", func() {
			status, body := c.do(http.MethodGet, "/metrics", "", nil)
			So(status, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "flames_stub_http_requests_total")
		})
	})
}
