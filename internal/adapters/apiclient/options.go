package apiclient

import (
	"net/http"
	"time"

	"github.com/okian/flames/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero keeps requests unbounded. The
// timeout also applies to a client given with WithHTTPClient, in any order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// RequestOption configures a single call to Do.
type RequestOption func(*request)

type request struct {
	method string
	body   interface{}
	token  string
	query  map[string]string
	route  string
}

// WithMethod sets the HTTP method. The default is GET.
func WithMethod(method string) RequestOption {
	return func(r *request) { r.method = method }
}

// WithBody sets a value to be sent as JSON.
func WithBody(body interface{}) RequestOption {
	return func(r *request) { r.body = body }
}

// WithToken attaches a bearer token. Empty tokens are ignored.
func WithToken(token string) RequestOption {
	return func(r *request) { r.token = token }
}

// WithQuery adds query parameters. Empty values are skipped.
func WithQuery(q map[string]string) RequestOption {
	return func(r *request) { r.query = q }
}

// WithRoute names the endpoint for metrics, e.g. "/exercises/{id}".
func WithRoute(route string) RequestOption {
	return func(r *request) { r.route = route }
}
