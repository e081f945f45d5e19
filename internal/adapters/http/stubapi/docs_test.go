package stubapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/flames/internal/adapters/http/stubapi"
)

var undocumented = map[string]bool{
	"/metrics":      true,
	"/openapi.yaml": true,
	"/api-docs":     true,
}

func TestOpenAPI(t *testing.T) {
	Convey("Given the embedded OpenAPI document", t, func() {
		doc, err := openapi3.NewLoader().LoadFromData(stubapi.OpenAPI)
		So(err, ShouldBeNil)
		So(doc.Validate(context.Background()), ShouldBeNil)

		Convey("Then every served route is documented", func() {
			routes, ok := stubapi.NewServer().Handler().(chi.Routes)
			So(ok, ShouldBeTrue)

			err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
				if undocumented[route] {
					return nil
				}
				item := doc.Paths.Value(route)
				So(item, ShouldNotBeNil)
				So(item.GetOperation(method), ShouldNotBeNil)
				return nil
			})
			So(err, ShouldBeNil)
		})

		Convey("Then the server publishes it", func() {
			ts := httptest.NewServer(stubapi.NewServer().Handler())
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/openapi.yaml")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldEqual, "application/yaml; charset=utf-8")

			docs, err := http.Get(ts.URL + "/api-docs")
			So(err, ShouldBeNil)
			defer docs.Body.Close()
			So(docs.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
