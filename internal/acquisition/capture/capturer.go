// Package capture implements the per-URL capture strategies: direct document
// download, browser print-to-PDF, and full-page screenshot, with ordered
// fallback between them.
package capture

import "context"

// Capturer is the browser-automation collaborator boundary. A Session backed
// by a headless browser implements it; tests substitute stubs. One Capturer
// serves one worker for the worker's whole lifetime.
type Capturer interface {
	// Navigate loads the URL in the session's tab and waits for the page to
	// settle, within the session's page timeout.
	Navigate(ctx context.Context, url string) error
	// Screenshot rasterizes the current page, beyond the viewport when
	// fullPage is set.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// PrintPDF renders the current page as a PDF document.
	PrintPDF(ctx context.Context) ([]byte, error)
	// HTML returns the current page's rendered DOM.
	HTML(ctx context.Context) ([]byte, error)
	// Close releases the underlying browser.
	Close() error
}

// SessionFactory creates the Capturer a worker owns. Factories run once per
// worker because browser startup is expensive.
type SessionFactory func(ctx context.Context) (Capturer, error)
