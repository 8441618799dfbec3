// ABOUTME: Unverified JWT introspection for the Bioclin access token cookie
// ABOUTME: Surfaces expiry hints for status output; never used for validity decisions

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry parses the access token as a JWT without verifying its
// signature and returns its exp claim. The platform owns the signing key, so
// this is diagnostics only: the local ExpiresAt policy ceiling stays
// authoritative for load decisions.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
