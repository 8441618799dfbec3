// ABOUTME: Tests for the authenticated API client
// ABOUTME: Covers credential attachment, cookie merge, result shapes, and the error taxonomy

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindhyads/bioclin-gateway/internal/session"
)

// testRecord builds an in-memory credential context.
func testRecord(t *testing.T) *session.Record {
	t.Helper()
	return session.New(
		map[string]string{
			session.CookieAccessToken: "tok-a",
			session.CookieCSRFToken:   "tok-c",
		},
		"tok-c",
		session.User{ID: "u-001", Username: "jdoe", Email: "jdoe@example.org"},
		time.Now(),
		session.DefaultTTL,
	)
}

// newTestClient wires a client against an httptest server with a record held
// in memory.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, Record: testRecord(t)})
	return c, srv
}

func TestDoAttachesCookiesAndCSRFHeader(t *testing.T) {
	var gotCSRF string
	var gotCookies map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCSRF = r.Header.Get("X-CSRF-Token")
		gotCookies = map[string]string{}
		for _, ck := range r.Cookies() {
			gotCookies[ck.Name] = ck.Value
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"message":"ok"}`))
	})

	_, err := c.Do(context.Background(), http.MethodPost, "/project/create_run", CallOptions{
		Body: map[string]any{"name": "run-1"},
	})
	require.NoError(t, err)

	// The CSRF token rides as a header, not just a cookie.
	assert.Equal(t, "tok-c", gotCSRF)
	assert.Equal(t, "tok-a", gotCookies["access_token"])
	assert.Equal(t, "tok-c", gotCookies["csrf_token"])
}

func TestDoWithoutRecordSendsNoCredentials(t *testing.T) {
	var cookieCount int
	var gotCSRF string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieCount = len(r.Cookies())
		gotCSRF = r.Header.Get("X-CSRF-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Do(context.Background(), http.MethodGet, "/identity/roles", CallOptions{})
	require.NoError(t, err)
	assert.Zero(t, cookieCount)
	assert.Empty(t, gotCSRF)
}

func TestDoMutuallyExclusiveEncodings(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost:0"})
	_, err := c.Do(context.Background(), http.MethodPost, "/x", CallOptions{
		Body: map[string]any{"a": 1},
		Form: url.Values{"b": {"2"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestDoFormEncoding(t *testing.T) {
	var gotContentType, gotBody string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	form := url.Values{}
	form.Set("username", "jdoe@example.org")
	form.Set("password", "hunter22!")
	form.Set("grant_type", "password")
	_, err := c.Do(context.Background(), http.MethodPost, "/identity/login", CallOptions{Form: form})
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Contains(t, gotBody, "grant_type=password")
}

func TestDoQueryParams(t *testing.T) {
	var gotQuery url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[],"count":0}`))
	})

	q := url.Values{}
	q.Set("skip", "0")
	q.Set("limit", "100")
	_, err := c.Do(context.Background(), http.MethodGet, "/identity/users/", CallOptions{Query: q})
	require.NoError(t, err)
	assert.Equal(t, "100", gotQuery.Get("limit"))
}

func TestDoMergesRotatedCookies(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "rotated"})
		http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "rotated-csrf"})
		http.SetCookie(w, &http.Cookie{Name: "tracking", Value: "nope"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	_, err := c.Do(context.Background(), http.MethodPost, "/identity/token/refresh", CallOptions{})
	require.NoError(t, err)

	rec := c.Record()
	require.NotNil(t, rec)
	assert.Equal(t, "rotated", rec.Cookies["access_token"])
	assert.Equal(t, "rotated-csrf", rec.Cookies["csrf_token"])
	assert.Equal(t, "rotated-csrf", rec.CSRFToken)
	assert.NotContains(t, rec.Cookies, "tracking")
}

func TestDoJSONResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"data":[{"name":"proj"}],"count":1}`))
	})

	res, err := c.Do(context.Background(), http.MethodGet, "/project/projects/", CallOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Data)

	m, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), m["count"])
	assert.False(t, res.NoContent)
}

func TestDoTextResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>report</html>"))
	})

	res, err := c.Do(context.Background(), http.MethodGet, "/google-ops/get_html_report", CallOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Data)
	assert.Equal(t, "<html>report</html>", res.Text)
	assert.Equal(t, "text/html", res.ContentType)
}

func TestDoNoContentResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.Do(context.Background(), http.MethodPost, "/identity/logout", CallOptions{})
	require.NoError(t, err)
	assert.True(t, res.NoContent)
	assert.Nil(t, res.Data)
}

func TestDoHTTPErrorWithParsedDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","name"],"msg":"field required","type":"missing"}]}`))
	})

	_, err := c.Do(context.Background(), http.MethodPost, "/project/create_project", CallOptions{
		Body: map[string]any{},
	})
	require.Error(t, err)

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnprocessableEntity, he.StatusCode)
	assert.NotNil(t, he.Detail)
	assert.False(t, he.AuthFailure())
}

func TestDoAuthFailureClassification(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Not authenticated"}`))
	})

	_, err := c.Do(context.Background(), http.MethodGet, "/identity/user_me", CallOptions{})
	require.Error(t, err)
	assert.True(t, IsAuthFailure(err))

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.StatusCode)
}

func TestDoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(Config{BaseURL: srv.URL, Record: testRecord(t)})
	_, err := c.Do(context.Background(), http.MethodGet, "/identity/user_me", CallOptions{})
	require.Error(t, err)

	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.False(t, IsAuthFailure(err))
}

func TestLoginCapturesResponseCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "fresh"})
		http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "fresh-csrf"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"message":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, c.Login(context.Background(), "jdoe@example.org", "hunter22!"))

	rec := c.Record()
	require.NotNil(t, rec)
	assert.Equal(t, "fresh", rec.AccessToken())
	assert.Equal(t, "fresh-csrf", rec.CSRFToken)
}

func TestLoginWithoutAccessTokenCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"message":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.Login(context.Background(), "jdoe@example.org", "hunter22!")
	require.ErrorIs(t, err, ErrNoAccessToken)
}

func TestResultJSONShapes(t *testing.T) {
	// Sanity-check that Result round-trips through json for tool output.
	res := &Result{StatusCode: 200, Data: map[string]any{"ok": true}}
	data, err := json.Marshal(res.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}
