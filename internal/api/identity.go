// ABOUTME: Session verification and login against the Bioclin identity endpoints
// ABOUTME: A record is only persisted after the identity check confirms the cookies

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vindhyads/bioclin-gateway/internal/session"
)

// ErrNoAccessToken is returned when a login response carries no access token
// cookie.
var ErrNoAccessToken = errors.New("no access token cookie in login response")

// CurrentUser verifies the working credentials against the identity-check
// endpoint and returns the identity snapshot. A non-2xx response surfaces as
// *HTTPError (401/403 meaning the cookies were rejected); network failures as
// *TransportError.
func (c *Client) CurrentUser(ctx context.Context) (*session.User, error) {
	res, err := c.Do(ctx, http.MethodGet, "/identity/user_me", CallOptions{})
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON to pull the identity fields out of the
	// structured response.
	data, err := json.Marshal(res.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding identity response: %w", err)
	}
	var user session.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding identity response: %w", err)
	}
	return &user, nil
}

// Login authenticates with username and password via the form-encoded login
// endpoint. Response cookies are merged into the working record; the caller
// decides whether to verify and persist them.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("grant_type", "password")

	if _, err := c.Do(ctx, http.MethodPost, "/identity/login", CallOptions{Form: form}); err != nil {
		return err
	}
	if !c.Authenticated() {
		return ErrNoAccessToken
	}
	return nil
}

// EstablishSession turns captured cookies into a verified, persisted session
// record. Verification failure means nothing is saved: the candidate cookies
// are discarded and the previous stored state is left untouched.
func EstablishSession(ctx context.Context, c *Client, store *session.Store, cookies map[string]string, csrfToken string, ttl time.Duration) (*session.Record, error) {
	rec := session.New(cookies, csrfToken, session.User{}, time.Now(), ttl)
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	c.SetRecord(rec)

	user, err := c.CurrentUser(ctx)
	if err != nil {
		c.SetRecord(nil)
		return nil, fmt.Errorf("verifying session: %w", err)
	}
	rec.User = *user

	if err := store.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
