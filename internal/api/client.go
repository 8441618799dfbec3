// ABOUTME: Authenticated HTTP client for the Bioclin REST API
// ABOUTME: Attaches session cookies and the CSRF header, and merges rotated cookies back

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vindhyads/bioclin-gateway/internal/session"
)

// csrfHeader is echoed from the csrf_token cookie on state-changing requests.
const csrfHeader = "X-CSRF-Token"

// Config holds configuration for the API client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Record  *session.Record // initial credential context; may be nil
	Store   *session.Store  // consulted when no record is held; may be nil
	Logger  *slog.Logger
}

// Client performs authenticated calls against the Bioclin API. It holds an
// explicit credential context rather than a process-global cookie jar: rotated
// cookies from responses are merged into the working record for the process
// lifetime, but nothing is persisted unless the caller saves explicitly.
type Client struct {
	baseURL string
	http    *http.Client
	store   *session.Store
	logger  *slog.Logger

	mu     sync.Mutex
	record *session.Record
}

// NewClient creates an API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   cfg.Store,
		logger:  logger,
		record:  cfg.Record,
	}
}

// CallOptions carries the argument placement for one call. Body and Form are
// mutually exclusive: the login endpoint requires form encoding, everything
// else sends a JSON body.
type CallOptions struct {
	Body  map[string]any
	Form  url.Values
	Query url.Values
}

// Result is a successful (2xx) response. Exactly one of Data, Text, or
// NoContent describes the payload: parsed JSON, raw text tagged with its
// content type, or an explicit empty-success marker.
type Result struct {
	StatusCode  int
	Data        any
	Text        string
	ContentType string
	NoContent   bool
}

// Record returns the working credential record, loading it from the store on
// first use. May return nil when no session exists.
func (c *Client) Record() *session.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

// SetRecord replaces the working credential record.
func (c *Client) SetRecord(rec *session.Record) {
	c.mu.Lock()
	c.record = rec
	c.mu.Unlock()
}

// Authenticated reports whether the working record carries an access token.
func (c *Client) Authenticated() bool {
	rec := c.Record()
	return rec != nil && rec.AccessToken() != ""
}

func (c *Client) loadLocked() *session.Record {
	if c.record == nil && c.store != nil {
		rec, err := c.store.Load()
		if err == nil && rec != nil {
			c.record = rec
		}
	}
	return c.record
}

// Do performs one call against the API. Non-2xx responses return *HTTPError;
// network failures return *TransportError. Neither is retried.
func (c *Client) Do(ctx context.Context, method, path string, opts CallOptions) (*Result, error) {
	if opts.Body != nil && opts.Form != nil {
		return nil, errors.New("json body and form body are mutually exclusive")
	}

	reqURL := c.baseURL + path
	if len(opts.Query) > 0 {
		reqURL += "?" + opts.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case opts.Form != nil:
		body = strings.NewReader(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case opts.Body != nil:
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.attachCredentials(req)

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	c.mergeResponseCookies(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.StatusCode, respBody)
	}

	return buildResult(resp, respBody), nil
}

// attachCredentials adds the session cookies and, when present, the CSRF
// token as a request header (not just a cookie).
func (c *Client) attachCredentials(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.loadLocked()
	if rec == nil {
		return
	}
	for name, value := range rec.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if rec.CSRFToken != "" {
		req.Header.Set(csrfHeader, rec.CSRFToken)
	}
}

// mergeResponseCookies folds rotated credential cookies from the response
// into the working record for subsequent calls within this process. The merge
// is in-memory only; persisting it is the caller's explicit choice.
func (c *Client) mergeResponseCookies(resp *http.Response) {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.record == nil {
		c.record = &session.Record{Cookies: make(map[string]string)}
	}
	if c.record.Cookies == nil {
		c.record.Cookies = make(map[string]string)
	}
	for _, ck := range cookies {
		if !session.AllowedCookie(ck.Name) {
			continue
		}
		c.record.Cookies[ck.Name] = ck.Value
		if ck.Name == session.CookieCSRFToken {
			c.record.CSRFToken = ck.Value
		}
	}
}

// buildResult interprets a 2xx response body.
func buildResult(resp *http.Response, body []byte) *Result {
	res := &Result{StatusCode: resp.StatusCode}

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent || len(body) == 0 {
		res.NoContent = true
		return res
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			res.Data = data
			return res
		}
	}

	res.Text = string(body)
	res.ContentType = resp.Header.Get("Content-Type")
	return res
}
