// Package api is the authenticated HTTP client for the Bioclin REST API.
//
// # Credential context
//
// The client holds an explicit session record instead of a process-global
// cookie jar. Cookies are attached to every request, and the CSRF token, when
// present, rides as the X-CSRF-Token header. Rotated credential cookies on
// responses are merged back into the working record in memory; persisting
// them is always the caller's explicit choice.
//
// # Failure taxonomy
//
//   - *TransportError: the request never completed (DNS, timeout, refused).
//   - *HTTPError: a non-2xx response, with the parsed error body when the
//     remote sent JSON. AuthFailure distinguishes 401/403 so callers can
//     re-trigger login instead of reporting a generic error.
//
// No call is ever retried; a failure surfaces to the caller exactly once.
package api
