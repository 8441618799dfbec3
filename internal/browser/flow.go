// ABOUTME: Human-in-the-loop browser login flow with dual success signals
// ABOUTME: Polls for a URL change away from the login path or an access_token cookie

package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vindhyads/bioclin-gateway/internal/session"
)

// Flow defaults; login completion is human-paced, so the ceiling is generous.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollLimit    = 150 // 150 * 2s = 5 minutes
	DefaultSettleDelay  = 2 * time.Second
	DefaultLoginPath    = "/login"
)

// ErrNoCookies is returned when a success signal fired but the filtered
// cookie jar came back empty: the login looked successful yet produced no
// usable credentials.
var ErrNoCookies = errors.New("login detected but no credential cookies were captured")

// TimeoutError reports that neither login signal fired within the polling
// ceiling. The last observed URL and page cookie string are kept for
// diagnostics.
type TimeoutError struct {
	LastURL     string
	LastCookies string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no login detected before the polling ceiling (last url %q)", e.LastURL)
}

// Capture is the cookie material produced by a successful login.
type Capture struct {
	Cookies   map[string]string
	CSRFToken string
}

// Flow drives an interactive browser login. The human types the credentials;
// the flow never sees the password. Zero-valued fields fall back to the
// package defaults.
type Flow struct {
	Browser      Browser
	LoginURL     string
	LoginPath    string // URL substring that marks "still on the login page"
	PollInterval time.Duration
	PollLimit    int
	SettleDelay  time.Duration
	Logger       *slog.Logger
}

// Run navigates to the login page and waits for either success signal: the
// URL leaving the login path, or an access_token cookie appearing on the
// page. Whichever fires first wins; login can complete via redirect or via an
// in-page cookie set with no navigation, so neither signal is assumed.
//
// The browser is released on every exit path. Cancel ctx to abort the wait
// early.
func (f *Flow) Run(ctx context.Context) (*Capture, error) {
	interval := f.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limit := f.PollLimit
	if limit <= 0 {
		limit = DefaultPollLimit
	}
	settle := f.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	loginPath := f.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer f.Browser.Close()

	if err := f.Browser.Navigate(ctx, f.LoginURL); err != nil {
		return nil, fmt.Errorf("opening login page: %w", err)
	}
	logger.Info("waiting for login in the browser window", "url", f.LoginURL,
		"ceiling", time.Duration(limit)*interval)

	var lastURL, lastCookies string
	detected := false
	for i := 0; i < limit; i++ {
		url, err := f.Browser.Location(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading page url: %w", err)
		}
		cookieStr, err := f.Browser.DocumentCookies(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading page cookies: %w", err)
		}
		lastURL, lastCookies = url, cookieStr

		if !strings.Contains(url, loginPath) {
			logger.Info("login detected", "signal", "url_change", "url", url, "polls", i+1)
			detected = true
			break
		}
		if strings.Contains(cookieStr, session.CookieAccessToken) {
			logger.Info("login detected", "signal", "cookie", "polls", i+1)
			detected = true
			break
		}

		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}

	if !detected {
		logger.Warn("login not detected before ceiling", "last_url", lastURL)
		return nil, &TimeoutError{LastURL: lastURL, LastCookies: lastCookies}
	}

	// Give the page a moment to finish setting cookies.
	if err := sleep(ctx, settle); err != nil {
		return nil, err
	}

	all, err := f.Browser.AllCookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading browser cookies: %w", err)
	}

	raw := make(map[string]string, len(all))
	for _, ck := range all {
		raw[ck.Name] = ck.Value
	}
	filtered := session.FilterCookies(raw)
	if len(filtered) == 0 {
		return nil, ErrNoCookies
	}

	logger.Info("captured credential cookies", "count", len(filtered))
	return &Capture{
		Cookies:   filtered,
		CSRFToken: filtered[session.CookieCSRFToken],
	}, nil
}

// sleep waits for d or until ctx is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
