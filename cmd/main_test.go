package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/flames/internal/adapters/http/stubapi"
)

func setEnv(t *testing.T, kv map[string]string) {
	for k, v := range kv {
		old, had := os.LookupEnv(k)
		_ = os.Setenv(k, v)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, old)
				return
			}
			_ = os.Unsetenv(k)
		})
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given the flames binary against a stub backend", t, func() {
		ts := httptest.NewServer(stubapi.NewServer(stubapi.WithBcryptCost(bcrypt.MinCost)).Handler())
		defer ts.Close()
		setEnv(t, map[string]string{
			"FLAMES_BASE_URL":  ts.URL,
			"FLAMES_STATE_DIR": t.TempDir(),
			"FLAMES_LOG_LEVEL": "error",
		})

		var stdout, stderr bytes.Buffer

		convey.Convey("When asking for help", func() {
			code := run([]string{"help"}, &stdout, &stderr)
			convey.So(code, convey.ShouldEqual, exitOK)
			convey.So(stdout.String(), convey.ShouldContainSubstring, "flames <command>")
		})

		convey.Convey("When the command is unknown", func() {
			code := run([]string{"dance"}, &stdout, &stderr)
			convey.So(code, convey.ShouldEqual, exitUsage)
			convey.So(stderr.String(), convey.ShouldContainSubstring, `error: unknown command "dance"`)
		})

		convey.Convey("When signing up and generating in separate runs", func() {
			code := run([]string{"signup", "-email", "p@flames.test", "-password", "pw"}, &stdout, &stderr)
			convey.So(code, convey.ShouldEqual, exitOK)

			stdout.Reset()
			code = run([]string{"generate", "-blind", "beta"}, &stdout, &stderr)
			convey.So(code, convey.ShouldEqual, exitOK)
			convey.So(stdout.String(), convey.ShouldContainSubstring, "(blind beta)")
		})

		convey.Convey("When a backend call fails", func() {
			code := run([]string{"login", "-email", "nobody@flames.test", "-password", "pw"}, &stdout, &stderr)
			convey.So(code, convey.ShouldEqual, exitError)
			convey.So(stderr.String(), convey.ShouldContainSubstring, "invalid credentials")
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		setEnv(t, map[string]string{"FLAMES_BASE_URL": "not a url"})
		var stdout, stderr bytes.Buffer
		code := run([]string{"whoami"}, &stdout, &stderr)
		convey.So(code, convey.ShouldEqual, exitError)
		convey.So(stderr.String(), convey.ShouldContainSubstring, "failed to load config")
	})
}
