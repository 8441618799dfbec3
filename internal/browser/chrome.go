// ABOUTME: Chrome DevTools Protocol implementation of the Browser seam
// ABOUTME: Launches a visible window so a human can complete the login form

package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Chrome drives a locally installed Chrome/Chromium via chromedp.
type Chrome struct {
	ctx     context.Context
	cancels []context.CancelFunc

	closeOnce sync.Once
}

// NewChrome launches a visible browser window. execPath optionally points at
// a specific browser binary; when empty chromedp's lookup is used. Launch
// failures surface here rather than mid-flow.
func NewChrome(execPath string) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// The human has to see the window to type their credentials.
		chromedp.Flag("headless", false),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}

	if err := chromedp.Run(browserCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	return c, nil
}

func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	// The chromedp context owns the browser lifetime; honor the caller's
	// cancellation before touching it.
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(c.ctx, actions...)
}

// Navigate loads url in the active page.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

// Location returns the active page's current URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

// DocumentCookies returns the page's document.cookie string.
func (c *Chrome) DocumentCookies(ctx context.Context) (string, error) {
	var cookies string
	err := c.run(ctx, chromedp.Evaluate(`document.cookie`, &cookies))
	return cookies, err
}

// AllCookies reads the full browser-context jar, including HttpOnly cookies
// that document.cookie cannot see.
func (c *Chrome) AllCookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			out = append(out, Cookie{Name: ck.Name, Value: ck.Value})
		}
		return nil
	}))
	return out, err
}

// Close releases the browser window and its allocator.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		for _, cancel := range c.cancels {
			cancel()
		}
	})
	return nil
}
