// ABOUTME: Local session-management tools served alongside the API catalogue
// ABOUTME: Checking the stored session and running the browser login never leave the machine

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vindhyads/bioclin-gateway/internal/api"
	"github.com/vindhyads/bioclin-gateway/internal/session"
)

const (
	toolCheckSession = "bioclin_check_session"
	toolBrowserLogin = "bioclin_browser_login"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// metaTools are handled locally instead of being routed to the REST API.
var metaTools = []MCPToolInfo{
	{
		Name:        toolCheckSession,
		Description: "Check the stored Bioclin session: whether one exists, who it belongs to, and whether the server still accepts it",
		InputSchema: emptyObjectSchema,
	},
	{
		Name:        toolBrowserLogin,
		Description: "Open a browser window for an interactive Bioclin login and store the captured session. Waits up to five minutes for the login to complete",
		InputSchema: emptyObjectSchema,
	},
}

var metaHandlers = map[string]func(*Server, context.Context, map[string]any) MCPCallToolResult{
	toolCheckSession: (*Server).checkSession,
	toolBrowserLogin: (*Server).browserLogin,
}

// checkSession reports the stored session state, verifying live sessions
// against the identity endpoint.
func (s *Server) checkSession(ctx context.Context, _ map[string]any) MCPCallToolResult {
	status, rec := s.store.Status()

	switch status {
	case session.StatusAbsent:
		return textResult("No stored Bioclin session. Use bioclin_browser_login to log in.")
	case session.StatusExpired:
		return textResult(fmt.Sprintf(
			"Stored session for %s expired at %s. Use bioclin_browser_login to log in again.",
			describeUser(rec.User), rec.ExpiresAt.Format(time.RFC3339)))
	}

	s.client.SetRecord(rec)
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		if api.IsAuthFailure(err) {
			return textResult(fmt.Sprintf(
				"Stored session for %s exists but the server no longer accepts it. Use bioclin_browser_login to log in again.",
				describeUser(rec.User)))
		}
		return errorResult(fmt.Sprintf("Stored session exists but verification failed: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Logged in to Bioclin as %s.\n", describeUser(*user))
	fmt.Fprintf(&b, "Session created %s, valid until %s.",
		rec.CreatedAt.Format(time.RFC3339), rec.ExpiresAt.Format(time.RFC3339))
	if exp, ok := session.TokenExpiry(rec.AccessToken()); ok {
		fmt.Fprintf(&b, "\nAccess token expires %s.", exp.Format(time.RFC3339))
	}
	return textResult(b.String())
}

// browserLogin runs the interactive browser flow and persists the verified
// session.
func (s *Server) browserLogin(ctx context.Context, _ map[string]any) MCPCallToolResult {
	if s.loginFlow == nil {
		return errorResult("Browser login is not available in this server. Run `bioclin-auth login` from a terminal instead.")
	}

	s.logger.Info("starting browser login")
	capture, err := s.loginFlow(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Browser login failed: %v", err))
	}

	rec, err := api.EstablishSession(ctx, s.client, s.store, capture.Cookies, capture.CSRFToken, s.sessionTTL)
	if err != nil {
		return errorResult(fmt.Sprintf("Captured cookies but could not establish a session: %v", err))
	}

	return textResult(fmt.Sprintf("Logged in to Bioclin as %s. Session valid until %s.",
		describeUser(rec.User), rec.ExpiresAt.Format(time.RFC3339)))
}

// describeUser renders an identity snapshot for human-readable output.
func describeUser(u session.User) string {
	switch {
	case u.Username != "" && u.Email != "":
		return fmt.Sprintf("%s (%s)", u.Username, u.Email)
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	default:
		return "an unknown user"
	}
}
