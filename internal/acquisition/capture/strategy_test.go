package capture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/pkg/extractor"
)

// minimalPDF is a tiny but structurally valid PDF document.
var minimalPDF = []byte("%PDF-1.4\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
	"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n" +
	"xref\n0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000058 00000 n \n" +
	"0000000115 00000 n \n" +
	"trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n186\n%%EOF\n")

// stubCapturer scripts browser behavior for strategy tests.
type stubCapturer struct {
	navigateErr   error
	printData     []byte
	printErr      error
	screenshotData []byte
	screenshotErr  error
	htmlData       []byte
	htmlErr        error

	navigations int
	prints      int
	screenshots int
	closed      bool
}

func (c *stubCapturer) Navigate(ctx context.Context, url string) error {
	c.navigations++
	return c.navigateErr
}

func (c *stubCapturer) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	c.screenshots++
	return c.screenshotData, c.screenshotErr
}

func (c *stubCapturer) PrintPDF(ctx context.Context) ([]byte, error) {
	c.prints++
	return c.printData, c.printErr
}

func (c *stubCapturer) HTML(ctx context.Context) ([]byte, error) {
	return c.htmlData, c.htmlErr
}

func (c *stubCapturer) Close() error {
	c.closed = true
	return nil
}

func TestCapturePageTaskScreenshots(t *testing.T) {
	s := NewStrategy(NewDownloader(time.Second, ""))
	sess := &stubCapturer{screenshotData: []byte("png-bytes")}

	data, kind, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL: "https://example.org/dns",
	})

	require.NoError(t, err)
	assert.Equal(t, acquisition.KindScreenshot, kind)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, 1, sess.navigations)
	assert.Equal(t, 0, sess.prints)
}

func TestCapturePageTaskLocalMarkdown(t *testing.T) {
	s := NewLocalMarkdownStrategy(NewDownloader(time.Second, ""), extractor.NewHTMLExtractor())
	sess := &stubCapturer{
		htmlData:       []byte("<html><body><h1>DNS</h1><p>Resolvers recurse.</p></body></html>"),
		screenshotData: []byte("png-bytes"),
	}

	data, kind, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL: "https://example.org/dns",
	})

	require.NoError(t, err)
	assert.Equal(t, acquisition.KindMarkdown, kind)
	assert.Contains(t, string(data), "DNS")
	assert.Equal(t, 0, sess.screenshots)
}

func TestCapturePageTaskLocalMarkdownFallsBackToScreenshot(t *testing.T) {
	s := NewLocalMarkdownStrategy(NewDownloader(time.Second, ""), extractor.NewHTMLExtractor())
	sess := &stubCapturer{
		htmlErr:        errors.New("DOM unavailable"),
		screenshotData: []byte("png-bytes"),
	}

	data, kind, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL: "https://example.org/dns",
	})

	require.NoError(t, err)
	assert.Equal(t, acquisition.KindScreenshot, kind)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestCaptureDocumentTaskDirectDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(minimalPDF)
	}))
	defer server.Close()

	s := NewStrategy(NewDownloader(5*time.Second, ""))
	sess := &stubCapturer{}

	data, kind, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL:            server.URL + "/guide.pdf",
		IntentDocument: true,
	})

	require.NoError(t, err)
	assert.Equal(t, acquisition.KindPDF, kind)
	assert.Equal(t, minimalPDF, data)
	// Download succeeded, so the browser was never touched.
	assert.Equal(t, 0, sess.navigations)
}

func TestCaptureDocumentTaskFallsBackToPrint(t *testing.T) {
	// Backend serves an HTML bot-wall page with a 200 status.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>please verify you are human</html>"))
	}))
	defer server.Close()

	s := NewStrategy(NewDownloader(5*time.Second, ""))
	sess := &stubCapturer{printData: []byte("pdf-bytes")}

	data, kind, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL:            server.URL + "/blocked",
		IntentDocument: true,
	})

	require.NoError(t, err)
	assert.Equal(t, acquisition.KindPDF, kind)
	assert.Equal(t, []byte("pdf-bytes"), data)
	assert.Equal(t, 1, sess.prints)
}

func TestCaptureDocumentTaskFallsThroughToScreenshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewStrategy(NewDownloader(5*time.Second, ""))
	sess := &stubCapturer{
		printErr:       errors.New("print crashed"),
		screenshotData: []byte("png-bytes"),
	}

	data, kind, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL:            server.URL + "/doc.pdf",
		IntentDocument: true,
	})

	require.NoError(t, err)
	assert.Equal(t, acquisition.KindScreenshot, kind)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestCaptureFailsOnlyWhenAllStrategiesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewStrategy(NewDownloader(5*time.Second, ""))
	sess := &stubCapturer{
		printErr:      errors.New("print crashed"),
		screenshotErr: errors.New("tab crashed"),
	}

	_, _, err := s.Capture(context.Background(), sess, acquisition.CaptureTask{
		URL:            server.URL + "/doc.pdf",
		IntentDocument: true,
	})

	require.Error(t, err)
	var capErr *acquisition.CaptureError
	assert.ErrorAs(t, err, &capErr)
}

func TestCaptureWithoutSessionOnlyDownloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(minimalPDF)
	}))
	defer server.Close()

	s := NewStrategy(NewDownloader(5*time.Second, ""))

	data, kind, err := s.Capture(context.Background(), nil, acquisition.CaptureTask{
		URL:            server.URL + "/guide.pdf",
		IntentDocument: true,
	})
	require.NoError(t, err)
	assert.Equal(t, acquisition.KindPDF, kind)
	assert.NotEmpty(t, data)

	// A page task without a session has no applicable strategy.
	_, _, err = s.Capture(context.Background(), nil, acquisition.CaptureTask{
		URL: server.URL + "/page",
	})
	assert.Error(t, err)
}

func TestDownloaderRejectsNonPDFPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("<html>error page pretending to be a pdf</html>"))
	}))
	defer server.Close()

	d := NewDownloader(5*time.Second, "")
	_, err := d.FetchDocument(context.Background(), server.URL+"/fake.pdf")
	assert.Error(t, err)
}
