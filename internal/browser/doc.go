// Package browser captures Bioclin session cookies through an interactive,
// human-in-the-loop browser login.
//
// The Flow opens the platform's login page in a visible window and polls for
// two independent success signals: the URL leaving the login path (redirect
// style login) or an access_token cookie appearing on the page (SPA style
// login). The first signal observed wins. On success the full browser-context
// cookie jar is read, filtered to the credential cookie set, and returned;
// the password itself never passes through this package.
//
// The Browser interface is the seam to the automation engine; Chrome is the
// chromedp-backed implementation. Tests substitute a scripted fake.
package browser
