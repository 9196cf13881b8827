package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/pkg/logging"
)

const (
	// maxDocumentSize caps direct downloads.
	maxDocumentSize = 100 * 1024 * 1024
)

// Downloader fetches document URLs directly, bypassing the browser.
type Downloader struct {
	client    *http.Client
	userAgent string
	log       zerolog.Logger
}

// NewDownloader creates a downloader with the given request timeout.
func NewDownloader(timeout time.Duration, userAgent string) *Downloader {
	return &Downloader{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		log:       logging.GetLogger("downloader"),
	}
}

// FetchDocument downloads rawURL and returns its bytes when the response is
// a usable PDF document. The response must either declare a PDF content type
// or the URL path must end in .pdf, and the payload must parse as a PDF.
func (d *Downloader) FetchDocument(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/pdf") && !pathEndsInPDF(rawURL) {
		return nil, fmt.Errorf("%s does not look like a document (content-type %q)", rawURL, contentType)
	}

	limited := &io.LimitedReader{R: resp.Body, N: maxDocumentSize}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if limited.N <= 0 {
		return nil, fmt.Errorf("document %s exceeds size limit", rawURL)
	}

	if err := validatePDF(data); err != nil {
		return nil, fmt.Errorf("downloaded %s: %w", rawURL, err)
	}

	d.log.Debug().
		Str("url", rawURL).
		Int("bytes", len(data)).
		Msg("Document downloaded")

	return data, nil
}

func pathEndsInPDF(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// validatePDF confirms the payload carries the PDF magic and parses. Servers
// behind bot walls tend to return HTML error pages with a 200 status; those
// must fall through to the browser strategies instead of being stored.
func validatePDF(data []byte) error {
	if len(data) < 4 || !bytes.HasPrefix(data, []byte("%PDF")) {
		return fmt.Errorf("payload is not a PDF (starts with %q)", previewBytes(data))
	}
	if _, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("payload failed PDF parse: %w", err)
	}
	return nil
}

func previewBytes(data []byte) string {
	if len(data) > 16 {
		data = data[:16]
	}
	return string(data)
}
