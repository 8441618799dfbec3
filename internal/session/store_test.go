// ABOUTME: Tests for the file-backed credential store
// ABOUTME: Covers round-trip, expiry enforcement, corruption tolerance, and permissions

package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore returns a store backed by a file in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".bioclin_session.json")
	return NewStore(path, slog.Default())
}

// seedRecord builds a well-formed record created at now.
func seedRecord(t *testing.T, now time.Time) *Record {
	t.Helper()
	return New(
		map[string]string{
			CookieAccessToken:  "tok-a",
			CookieCSRFToken:    "tok-c",
			CookieRefreshToken: "tok-r",
		},
		"tok-c",
		User{ID: "u-001", Username: "jdoe", Email: "jdoe@example.org"},
		now,
		DefaultTTL,
	)
}

func TestStoreRoundTrip(t *testing.T) {
	s := createTestStore(t)
	rec := seedRecord(t, time.Now().UTC().Truncate(time.Second))

	require.NoError(t, s.Save(rec))

	// Read-your-writes within one process.
	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, rec.Cookies, loaded.Cookies)
	assert.Equal(t, rec.CSRFToken, loaded.CSRFToken)
	assert.Equal(t, rec.User, loaded.User)
	assert.True(t, rec.CreatedAt.Equal(loaded.CreatedAt))
	assert.True(t, rec.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestStoreOwnerOnlyPermissions(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Save(seedRecord(t, time.Now())))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreSaveOverwrites(t *testing.T) {
	s := createTestStore(t)

	first := seedRecord(t, time.Now())
	require.NoError(t, s.Save(first))

	second := seedRecord(t, time.Now())
	second.Cookies[CookieAccessToken] = "rotated"
	require.NoError(t, s.Save(second))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "rotated", loaded.AccessToken())
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := createTestStore(t)

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreLoadExpiredIsAbsent(t *testing.T) {
	s := createTestStore(t)

	// A record created eight days ago is past the seven-day ceiling,
	// regardless of cookie contents.
	rec := seedRecord(t, time.Now().Add(-8*24*time.Hour))
	require.NoError(t, s.Save(rec))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Status still exposes the expired record for reporting.
	status, inspected := s.Status()
	assert.Equal(t, StatusExpired, status)
	require.NotNil(t, inspected)
	assert.Equal(t, "jdoe", inspected.User.Username)
}

func TestStoreLoadCorruptFile(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json at all{{{"), 0o600))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreLoadMissingRequiredKeys(t *testing.T) {
	s := createTestStore(t)

	// Valid JSON, but no cookies: not a usable session.
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"csrf_token":"x"}`), 0o600))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)

	status, _ := s.Status()
	assert.Equal(t, StatusAbsent, status)
}

func TestStoreSaveRejectsEmptyCookies(t *testing.T) {
	s := createTestStore(t)

	rec := New(map[string]string{"unrelated": "c"}, "", User{}, time.Now(), DefaultTTL)
	err := s.Save(rec)
	require.ErrorIs(t, err, ErrNoCredentials)

	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreClear(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Save(seedRecord(t, time.Now())))

	require.NoError(t, s.Clear())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	// Clearing an absent session is a no-op, not an error.
	require.NoError(t, s.Clear())
}
