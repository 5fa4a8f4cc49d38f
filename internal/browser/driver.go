// Package browser defines the narrow automation capability the pipeline
// consumes, plus a chromedp-backed implementation. The pipeline treats
// the capability as synchronous request/response; retries and fallback
// strategies live in the extractor, not here.
package browser

import (
	"context"
	"time"
)

// OpenStrategy selects how a detail view is opened from a result row.
type OpenStrategy string

const (
	// OpenViaContextMenu simulates the secondary-button "open in new
	// view" action on the row element.
	OpenViaContextMenu OpenStrategy = "context_menu"
	// OpenViaURL opens the detail URL extracted from the row link in a
	// fresh tab.
	OpenViaURL OpenStrategy = "direct_url"
	// OpenViaModifierClick ctrl-clicks the row link.
	OpenViaModifierClick OpenStrategy = "modifier_click"
)

// Download is a fetched file with the portal's suggested name.
type Download struct {
	Filename string
	Data     []byte
}

// Driver is the list-page automation capability.
type Driver interface {
	// Navigate loads a URL in the primary view and waits for the load
	// event, bounded by the driver's navigation timeout.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector is visible or the timeout
	// elapses.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	// Text returns the trimmed inner text of the first match.
	Text(ctx context.Context, sel string) (string, error)

	// Attribute returns an attribute of the first match; ok is false
	// when the attribute is absent.
	Attribute(ctx context.Context, sel, name string) (value string, ok bool, err error)

	// Count returns how many elements match the selector.
	Count(ctx context.Context, sel string) (int, error)

	// Enabled reports whether the first match is visible and not
	// disabled.
	Enabled(ctx context.Context, sel string) (bool, error)

	// Click clicks the first match.
	Click(ctx context.Context, sel string) error

	// OpenDetail opens a detail view using the given strategy. The
	// target is a row/link selector for click strategies and an
	// absolute URL for OpenViaURL.
	OpenDetail(ctx context.Context, strat OpenStrategy, target string) (DetailView, error)

	// Close releases the underlying browser.
	Close() error
}

// DetailView is an opened record detail context. Always close it;
// Close tolerates an already-closed view.
type DetailView interface {
	// URL returns the detail view's current location.
	URL(ctx context.Context) (string, error)

	// WaitReady blocks until the view finished loading, bounded by
	// timeout, and returns nil on timeout as well: the caller proceeds
	// with whatever rendered.
	WaitReady(ctx context.Context, timeout time.Duration) error

	Text(ctx context.Context, sel string) (string, error)
	Attribute(ctx context.Context, sel, name string) (string, bool, error)
	Count(ctx context.Context, sel string) (int, error)

	// RenderPDF renders the view to a paginated PDF document.
	RenderPDF(ctx context.Context) ([]byte, error)

	// Screenshot captures a full-page image.
	Screenshot(ctx context.Context) ([]byte, error)

	// FetchDownload clicks the selector and waits for the triggered
	// file download to complete, bounded by timeout.
	FetchDownload(ctx context.Context, sel string, timeout time.Duration) (*Download, error)

	Close() error
}
