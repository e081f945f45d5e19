// Package apiclient is a thin HTTP wrapper around the red-teaming backend API.
//
// A call builds base+path+query, attaches a bearer token when one is given,
// sends a JSON body and returns the body parsed as JSON or raw text. Any
// status outside 2xx becomes a *RequestError carrying the server's text.
// There are no retries.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

// Client performs backend API calls.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Response is a parsed API response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the server declared a JSON payload.
func (r Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

// Text returns the raw body.
func (r Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals a JSON body into v.
func (r Response) Decode(v interface{}) error {
	if !r.IsJSON() {
		return errors.Mark(errors.Newf("expected JSON response, got %q", r.ContentType), ErrDecode)
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode response"), ErrDecode)
	}
	return nil
}

// URL builds base+path with the non-empty query values set.
func (c *Client) URL(path string, query map[string]string) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			if v != "" {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Do performs one request against path.
func (c *Client) Do(ctx context.Context, path string, opts ...RequestOption) (Response, error) {
	r := request{method: http.MethodGet}
	for _, opt := range opts {
		opt(&r)
	}
	route := r.route
	if route == "" {
		route = path
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return Response{}, errors.Wrap(err, "marshal request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.URL(path, r.query), body)
	if err != nil {
		return Response{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordAPIRequest(route, r.method, "error", latency)
		metrics.RecordAPIError(route, errorType(0))
		c.logger.Debug(ctx, "request failed", logger.String("method", r.method), logger.String("path", path), logger.Error(err))
		return Response{}, errors.Mark(errors.Wrapf(err, "%s %s", r.method, path), ErrTransport)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, errors.Mark(errors.Wrap(err, "read response body"), ErrTransport)
	}

	status := strconv.Itoa(resp.StatusCode)
	metrics.RecordAPIRequest(route, r.method, status, latency)
	c.logger.Debug(ctx, "request completed",
		logger.String("method", r.method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Float64("latencyMs", latency))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordAPIError(route, errorType(resp.StatusCode))
		return Response{}, &RequestError{
			Method: r.method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}

	return Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}, nil
}

// doJSON performs a request and decodes the JSON result into T.
func doJSON[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	var out T
	resp, err := c.Do(ctx, path, opts...)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
