package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/pkg/logging"
)

// removeOverlaysJS strips cookie/consent overlays that would otherwise cover
// the rendered page.
const removeOverlaysJS = `(() => {
	const selector = '[id*="cookie"], [class*="fc-consent-root"], [class*="overlay"], [class*="ot-fade-in"], [id*="consent"], [class*="consent"]';
	document.querySelectorAll(selector).forEach(el => el.remove());
})()`

// SessionConfig configures one browser session.
type SessionConfig struct {
	Headless    bool          `json:"headless"`
	PageTimeout time.Duration `json:"page_timeout"`
	UserAgent   string        `json:"user_agent"`
	WindowW     int           `json:"window_w"`
	WindowH     int           `json:"window_h"`
}

// DefaultSessionConfig returns default browser session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Headless:    true,
		PageTimeout: 30 * time.Second,
		WindowW:     1920,
		WindowH:     1080,
	}
}

// Session owns one headless browser for the lifetime of a worker. Navigate,
// Screenshot and PrintPDF operate on the session's single tab.
type Session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	timeout       time.Duration
	log           zerolog.Logger
}

// NewSession launches a browser and verifies it responds. The parent context
// bounds the browser's lifetime.
func NewSession(parent context.Context, cfg SessionConfig) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowW, cfg.WindowH),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("deny-permission-prompts", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process now so per-task calls pay no startup cost.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		timeout:       cfg.PageTimeout,
		log:           logging.GetLogger("browser"),
	}, nil
}

// Navigate loads url and removes consent overlays. The session's page
// timeout bounds the whole operation.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	err := chromedp.Run(opCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(1*time.Second),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	// Overlay cleanup is best effort; pages without the elements still load.
	if err := chromedp.Run(opCtx, chromedp.Evaluate(removeOverlaysJS, nil)); err != nil {
		s.log.Debug().Err(err).Str("url", url).Msg("Overlay removal script failed")
	}

	return nil
}

// Screenshot rasterizes the current page as PNG.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var buf []byte
	var err error
	if fullPage {
		err = chromedp.Run(opCtx, chromedp.FullScreenshot(&buf, 90))
	} else {
		err = chromedp.Run(opCtx, chromedp.CaptureScreenshot(&buf))
	}
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// PrintPDF renders the current page as a PDF document.
func (s *Session) PrintPDF(ctx context.Context) ([]byte, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("printing to PDF: %w", err)
	}
	return buf, nil
}

// HTML returns the rendered DOM of the current page.
func (s *Session) HTML(ctx context.Context) ([]byte, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var content string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &content)); err != nil {
		return nil, fmt.Errorf("reading page DOM: %w", err)
	}
	return []byte(content), nil
}

// Close shuts down the browser.
func (s *Session) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}

// opContext derives a per-operation context from the session's browser
// context, bounded by the page timeout and released when the caller's
// context is cancelled.
func (s *Session) opContext(caller context.Context) (context.Context, context.CancelFunc) {
	opCtx, timeoutCancel := context.WithTimeout(s.browserCtx, s.timeout)

	stop := context.AfterFunc(caller, timeoutCancel)
	return opCtx, func() {
		stop()
		timeoutCancel()
	}
}
