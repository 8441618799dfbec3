// ABOUTME: Session record data model persisted after a successful Bioclin login
// ABOUTME: Captured cookies are filtered to the credential set before a record is built

package session

import (
	"errors"
	"time"
)

// Cookie names that make up a Bioclin session. Everything else captured from
// a browser is discarded.
const (
	CookieAccessToken  = "access_token"
	CookieCSRFToken    = "csrf_token"
	CookieRefreshToken = "refresh_token"
)

// DefaultTTL is the local policy ceiling on session age. It is not derived
// from the remote token's own lifetime and does not guarantee server-side
// validity.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNoCredentials is returned when a record would be persisted without any
// credential cookies.
var ErrNoCredentials = errors.New("session record has no credential cookies")

// User is the identity snapshot captured at login time. It is not refreshed
// afterwards.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Record is the persisted authentication state for one Bioclin login.
type Record struct {
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token"`
	User      User              `json:"user"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// New builds a record from a filtered cookie set. ExpiresAt is always
// CreatedAt plus ttl.
func New(cookies map[string]string, csrfToken string, user User, now time.Time, ttl time.Duration) *Record {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Record{
		Cookies:   FilterCookies(cookies),
		CSRFToken: csrfToken,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// FilterCookies keeps only the cookie names that belong in a session record.
func FilterCookies(cookies map[string]string) map[string]string {
	filtered := make(map[string]string, 3)
	for name, value := range cookies {
		switch name {
		case CookieAccessToken, CookieCSRFToken, CookieRefreshToken:
			filtered[name] = value
		}
	}
	return filtered
}

// AllowedCookie reports whether name belongs to the credential cookie set.
func AllowedCookie(name string) bool {
	switch name {
	case CookieAccessToken, CookieCSRFToken, CookieRefreshToken:
		return true
	}
	return false
}

// Expired reports whether the record's local policy ceiling has passed.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AccessToken returns the access token cookie value, or "" when absent.
func (r *Record) AccessToken() string {
	return r.Cookies[CookieAccessToken]
}

// Validate checks the record invariant: a record is either entirely absent or
// fully populated.
func (r *Record) Validate() error {
	if len(r.Cookies) == 0 {
		return ErrNoCredentials
	}
	return nil
}
