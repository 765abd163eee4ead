// Package browser defines the page-automation boundary the pipeline drives:
// a Session that owns authenticated state (cookies) and Pages opened within
// it. Two drivers are provided: a plain HTTP session for server-rendered
// storefronts, and a chromedp-backed session when client-side rendering is
// required.
package browser

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ErrScreenshotUnsupported is returned by drivers that cannot render pixels.
var ErrScreenshotUnsupported = eris.New("browser: screenshots unsupported by this driver")

// Options configures a Session.
type Options struct {
	// NavTimeout bounds every navigation and form submission.
	NavTimeout time.Duration
	// UserAgent overrides the driver default when non-empty.
	UserAgent string
	// Headless applies to rendering drivers only.
	Headless bool
}

func (o Options) withDefaults() Options {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 120 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; CatalogSync/1.0)"
	}
	return o
}

// Session is an authenticated browsing context. Pages opened from the same
// Session share cookies; concurrent extraction units each open their own
// Page and must close it on every exit path.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one open page/tab within a Session.
type Page interface {
	// Navigate loads the URL, bounded by the session's NavTimeout.
	Navigate(ctx context.Context, url string) error

	// URL is the page's current location (after redirects).
	URL() string

	// Document returns the current DOM as a goquery document.
	Document() (*goquery.Document, error)

	// FetchJSON performs a same-origin JSON request with the session's
	// credentials (in page context for rendering drivers, sidestepping
	// cross-origin restrictions) and decodes the response into out.
	FetchJSON(ctx context.Context, url string, out any) error

	// SubmitForm fills the named fields of the form matched by formSelector
	// and submits it, waiting for the resulting load.
	SubmitForm(ctx context.Context, formSelector string, fields map[string]string) error

	// Screenshot captures the full page as PNG, when the driver can.
	Screenshot(ctx context.Context) ([]byte, error)

	Close() error
}
