// ABOUTME: Tests for the tool router against a stub HTTP server
// ABOUTME: Covers argument placement across path, query, form, and JSON body

package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindhyads/bioclin-gateway/internal/api"
	"github.com/vindhyads/bioclin-gateway/internal/session"
)

// capturedRequest records what the stub server saw for one call.
type capturedRequest struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        []byte
}

// newTestRouter wires a router to a stub server and returns both plus the
// capture slot filled in by each request.
func newTestRouter(t *testing.T) (*Router, *capturedRequest) {
	t.Helper()

	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Query = r.URL.Query()
		captured.ContentType = r.Header.Get("Content-Type")
		captured.Body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	rec := session.New(map[string]string{
		session.CookieAccessToken: "tok",
	}, "csrf-1", session.User{}, time.Now(), 0)

	client := api.NewClient(api.Config{BaseURL: srv.URL, Record: rec})
	return NewRouter(loadCatalogue(t), client, nil), captured
}

func TestRouterQueryEncoding(t *testing.T) {
	router, captured := newTestRouter(t)

	res, err := router.Call(context.Background(), "bioclin_get_users", map[string]any{
		"skip":  5,
		"limit": 50,
	})
	require.NoError(t, err)
	assert.NotNil(t, res.Data)

	assert.Equal(t, "GET", captured.Method)
	assert.Equal(t, "/identity/users/", captured.Path)
	assert.Equal(t, "5", captured.Query.Get("skip"))
	assert.Equal(t, "50", captured.Query.Get("limit"))
	assert.Empty(t, captured.Body)
}

func TestRouterPathSubstitution(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_get_org", map[string]any{
		"org_id": "0d9b3c1e-0000-4000-8000-123456789abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "/identity/orgs/0d9b3c1e-0000-4000-8000-123456789abc", captured.Path)
	assert.Empty(t, captured.Query.Get("org_id"), "path arguments must not leak into the query")
}

func TestRouterPathAndQuerySplit(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_set_user_admin", map[string]any{
		"user_id":  "9b2f4a6c-0000-4000-8000-123456789abc",
		"is_admin": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "PATCH", captured.Method)
	assert.Equal(t, "/identity/set_user_admin/9b2f4a6c-0000-4000-8000-123456789abc", captured.Path)
	assert.Equal(t, "true", captured.Query.Get("is_admin"))
}

func TestRouterJSONBody(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_create_org", map[string]any{
		"name":        "genomics",
		"description": "Genomics group",
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", captured.Method)
	assert.Equal(t, "application/json", captured.ContentType)

	var body map[string]any
	require.NoError(t, json.Unmarshal(captured.Body, &body))
	assert.Equal(t, "genomics", body["name"])
	assert.Equal(t, "Genomics group", body["description"])
}

func TestRouterFormLogin(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_login", map[string]any{
		"username": "ada@example.org",
		"password": "hunter2hunter2",
	})
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", captured.ContentType)
	form, err := url.ParseQuery(string(captured.Body))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", form.Get("username"))
	assert.Equal(t, "password", form.Get("grant_type"))
}

func TestRouterMixedQueryAndBody(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_update_param", map[string]any{
		"param_id": "p-1",
		"name":     "threshold",
	})
	require.NoError(t, err)

	assert.Equal(t, "/project/update_param", captured.Path)
	assert.Equal(t, "p-1", captured.Query.Get("param_id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(captured.Body, &body))
	assert.Equal(t, "threshold", body["name"])
	assert.NotContains(t, body, "param_id", "query arguments must not repeat in the body")
}

func TestRouterUnknownTool(t *testing.T) {
	router, _ := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_nonexistent", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRouterValidationShortCircuits(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_create_org", map[string]any{
		"name": "genomics",
	})
	require.Error(t, err)
	assert.Empty(t, captured.Method, "invalid calls must not reach the server")
}

func TestRouterPathEscaping(t *testing.T) {
	router, captured := newTestRouter(t)

	_, err := router.Call(context.Background(), "bioclin_recover_password", map[string]any{
		"email": "ada lovelace@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "/identity/recover_password/ada lovelace@example.org", captured.Path)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "plain", formatValue("plain"))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, "60", formatValue(float64(60)), "integral JSON numbers must not grow a decimal point")
	assert.Equal(t, "0.5", formatValue(0.5))
	assert.Equal(t, "7", formatValue(7))
}
