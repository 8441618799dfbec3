// ABOUTME: Seam for the controllable browser the login flow drives
// ABOUTME: Implementations expose navigate, current URL, and cookie reads

package browser

import "context"

// Cookie is a name/value pair captured from the browser.
type Cookie struct {
	Name  string
	Value string
}

// Browser is the minimal surface the login flow needs from a browser
// automation engine. The flow treats it as an external collaborator; the one
// real implementation is Chrome.
type Browser interface {
	// Navigate loads the given URL in the active page.
	Navigate(ctx context.Context, url string) error

	// Location returns the active page's current URL.
	Location(ctx context.Context) (string, error)

	// DocumentCookies returns the page's document.cookie string. This only
	// sees cookies visible to the page, which is enough for signal
	// detection but not for capture.
	DocumentCookies(ctx context.Context) (string, error)

	// AllCookies returns the full cookie jar of the browser context,
	// including HttpOnly cookies invisible to the page.
	AllCookies(ctx context.Context) ([]Cookie, error)

	// Close releases the browser. Safe to call more than once.
	Close() error
}
