// ABOUTME: File-backed credential store with owner-only permissions
// ABOUTME: Load downgrades expiry and corruption to "absent" so callers can re-authenticate

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Status describes what the credential file currently holds.
type Status int

const (
	// StatusAbsent means there is no usable session: the file is missing,
	// corrupt, or missing required keys.
	StatusAbsent Status = iota
	// StatusActive means a well-formed, unexpired record is stored.
	StatusActive
	// StatusExpired means a well-formed record is stored but its local
	// policy ceiling has passed.
	StatusExpired
)

// Store owns the session file. There is exactly one record per local user;
// concurrent writers are not coordinated beyond atomic whole-file replace
// (last writer wins).
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger, now: time.Now}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the record to the session file with owner-only permissions.
// The replace is atomic from the caller's perspective: it fails or succeeds
// wholesale.
func (s *Store) Save(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".bioclin_session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	tmpName := tmp.Name()

	// Restrict permissions before any credential bytes hit disk.
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("restricting session file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}

	s.logger.Debug("session saved", "path", s.path, "user", rec.User.Username)
	return nil
}

// Load returns the stored record, or (nil, nil) when no usable session
// exists. A missing file, a corrupt file, and an expired record all count as
// absent; re-authentication is always the recovery path, never a crash.
func (s *Store) Load() (*Record, error) {
	status, rec := s.Status()
	switch status {
	case StatusActive:
		return rec, nil
	case StatusExpired:
		s.logger.Warn("session expired; log in again with bioclin-auth login",
			"expired_at", rec.ExpiresAt)
		return nil, nil
	default:
		return nil, nil
	}
}

// Status inspects the session file without expiry side effects. The record is
// returned for both active and expired sessions so callers can report detail.
func (s *Store) Status() (Status, *Record) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("reading session file", "path", s.path, "error", err)
		}
		return StatusAbsent, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("session file is corrupt; treating as logged out", "path", s.path, "error", err)
		return StatusAbsent, nil
	}
	if rec.Validate() != nil || rec.ExpiresAt.IsZero() {
		s.logger.Warn("session file is missing required keys; treating as logged out", "path", s.path)
		return StatusAbsent, nil
	}

	if rec.Expired(s.now()) {
		return StatusExpired, &rec
	}
	return StatusActive, &rec
}

// Clear deletes the session file. A missing file is reported, not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no active session found", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("removing session file: %w", err)
	}
	s.logger.Info("session credentials removed", "path", s.path)
	return nil
}
