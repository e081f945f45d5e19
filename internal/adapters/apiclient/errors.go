package apiclient

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel kinds for API client errors.
var (
	ErrRequest   = errors.New("request failed")
	ErrTransport = errors.New("transport failure")
	ErrDecode    = errors.New("decode response failed")
)

// RequestError is returned for any response outside the 2xx range. Its
// message is the server's raw error text.
type RequestError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is(err, ErrRequest) match any RequestError.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// StatusOf extracts the HTTP status of a RequestError, or 0.
func StatusOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// IsNotFound reports a not-found-class failure.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports a rejected or missing token.
func IsUnauthorized(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// errorType classifies a failure for metrics.
func errorType(status int) string {
	switch {
	case status == 0:
		return "transport"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "unauthorized"
	default:
		return "client_error"
	}
}
