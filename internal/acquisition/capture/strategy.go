package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/pkg/extractor"
	"github.com/corpusworks/harvester/pkg/logging"
)

// Strategy selects and runs capture techniques for a task, in order:
// document tasks try direct download, then browser print-to-PDF, then fall
// through to a full-page screenshot; page tasks go straight to screenshot,
// unless an HTML extractor is attached, in which case the rendered DOM is
// converted to markdown first and the screenshot becomes the fallback.
// A task fails only when every applicable technique has failed.
type Strategy struct {
	downloader *Downloader
	extractor  *extractor.HTMLExtractor
	log        zerolog.Logger
}

// NewStrategy creates a strategy backed by the given downloader.
func NewStrategy(downloader *Downloader) *Strategy {
	return &Strategy{
		downloader: downloader,
		log:        logging.GetLogger("strategy"),
	}
}

// NewLocalMarkdownStrategy creates a strategy that captures page tasks as
// locally extracted markdown, for runs without a remote scrape backend.
func NewLocalMarkdownStrategy(downloader *Downloader, ex *extractor.HTMLExtractor) *Strategy {
	s := NewStrategy(downloader)
	s.extractor = ex
	return s
}

// Capture runs the strategy chain for task using sess for browser-backed
// techniques. sess may be nil when no browser session is available, in which
// case only the direct-download technique applies.
func (s *Strategy) Capture(ctx context.Context, sess Capturer, task acquisition.CaptureTask) ([]byte, acquisition.ContentKind, error) {
	var errs []error

	if task.IntentDocument {
		data, err := s.downloader.FetchDocument(ctx, task.URL)
		if err == nil {
			return data, acquisition.KindPDF, nil
		}
		errs = append(errs, err)
		s.log.Debug().Err(err).Str("url", task.URL).Msg("Direct download failed, trying browser print")

		if sess != nil {
			data, err = s.printViaBrowser(ctx, sess, task.URL)
			if err == nil {
				return data, acquisition.KindPDF, nil
			}
			errs = append(errs, err)
			s.log.Debug().Err(err).Str("url", task.URL).Msg("Browser print failed, falling back to screenshot")
		}
	}

	if sess == nil {
		errs = append(errs, errors.New("no browser session available"))
		return nil, acquisition.KindScreenshot, &acquisition.CaptureError{
			URL:      task.URL,
			Strategy: "screenshot",
			Err:      errors.Join(errs...),
		}
	}

	if !task.IntentDocument && s.extractor != nil {
		data, err := s.markdownViaBrowser(ctx, sess, task.URL)
		if err == nil {
			return data, acquisition.KindMarkdown, nil
		}
		errs = append(errs, err)
		s.log.Debug().Err(err).Str("url", task.URL).Msg("Local markdown extraction failed, falling back to screenshot")
	}

	data, err := s.screenshotViaBrowser(ctx, sess, task.URL)
	if err == nil {
		return data, acquisition.KindScreenshot, nil
	}
	errs = append(errs, err)

	return nil, acquisition.KindScreenshot, &acquisition.CaptureError{
		URL:      task.URL,
		Strategy: "screenshot",
		Err:      errors.Join(errs...),
	}
}

func (s *Strategy) markdownViaBrowser(ctx context.Context, sess Capturer, url string) ([]byte, error) {
	if err := sess.Navigate(ctx, url); err != nil {
		return nil, err
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	text, _, err := s.extractor.Extract(ctx, html)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("page %s yielded no extractable text", url)
	}
	return []byte(text), nil
}

func (s *Strategy) printViaBrowser(ctx context.Context, sess Capturer, url string) ([]byte, error) {
	if err := sess.Navigate(ctx, url); err != nil {
		return nil, err
	}
	data, err := sess.PrintPDF(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("print of %s produced no content", url)
	}
	return data, nil
}

func (s *Strategy) screenshotViaBrowser(ctx context.Context, sess Capturer, url string) ([]byte, error) {
	if err := sess.Navigate(ctx, url); err != nil {
		return nil, err
	}
	data, err := sess.Screenshot(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot of %s produced no content", url)
	}
	return data, nil
}
