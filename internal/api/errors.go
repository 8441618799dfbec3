// ABOUTME: Typed error taxonomy for calls against the Bioclin API
// ABOUTME: Separates transport failures from HTTP application and authentication failures

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// TransportError wraps a network-level failure (DNS, timeout, connection
// refused, TLS). Transport failures are never retried automatically.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError carries a non-2xx response: the status code, the raw response
// text, and the parsed error body when the remote side sent JSON.
type HTTPError struct {
	StatusCode int
	Body       string
	Detail     any // parsed JSON error body, nil when not parseable
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// AuthFailure reports whether the remote side rejected the credentials, as
// opposed to a generic application failure. Callers use this to decide to
// re-trigger the login flow rather than just reporting an error.
func (e *HTTPError) AuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// newHTTPError builds an HTTPError with a best-effort parse of the body.
func newHTTPError(statusCode int, body []byte) *HTTPError {
	he := &HTTPError{StatusCode: statusCode, Body: string(body)}
	var detail any
	if json.Unmarshal(body, &detail) == nil {
		he.Detail = detail
	}
	return he
}

// IsAuthFailure reports whether err is an HTTP authentication failure.
func IsAuthFailure(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.AuthFailure()
}
