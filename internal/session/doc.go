// Package session persists Bioclin login state on local disk.
//
// # Overview
//
// A session is proof of a successful remote login: the credential cookies
// (access_token, csrf_token, refresh_token), the anti-forgery token, and an
// identity snapshot captured at login time. The Store owns a single JSON file
// per local user (~/.bioclin_session.json, mode 0600) and is the only writer.
//
// # Lifecycle
//
// Records are created by the browser login flow or the CLI credential prompt,
// read before every authenticated call, and deleted on logout. A record whose
// expires_at has passed is reported as absent on Load; expires_at is always
// created_at plus a fixed policy ceiling (7 days by default), independent of
// the remote token's true lifetime.
//
// # Failure policy
//
// Local state corruption is downgraded to "no session" rather than propagated:
// a corrupt or truncated file loads as absent so the caller can proceed
// straight into re-authentication.
//
// # Concurrency
//
// One logical session per machine/user. Saves are atomic whole-file replaces;
// if two processes write concurrently, the last save wins and earlier
// in-memory state in other processes goes stale. Read-your-writes holds
// within a single process.
package session
