// Package batch submits page URLs to a remote markdown scrape backend as a
// single job and polls it to completion.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/pkg/logging"
)

// Job status values reported by the scrape backend.
const (
	JobStatusScraping  = "scraping"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Client talks to the batch scrape backend. The backend renders each URL
// and returns its content as markdown.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a backend client. apiKey may be empty for backends that
// do not require credentials.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     logging.GetLogger("scrape-client"),
	}
}

type submitRequest struct {
	URLs    []string `json:"urls"`
	Formats []string `json:"formats"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error,omitempty"`
}

// JobItem is one scraped page inside a job's result set.
type JobItem struct {
	Markdown string `json:"markdown"`
	Metadata struct {
		SourceURL string `json:"sourceURL"`
	} `json:"metadata"`
}

// JobStatus is the backend's view of a submitted job.
type JobStatus struct {
	Status string    `json:"status"`
	Data   []JobItem `json:"data"`
}

// Submit creates a batch scrape job for the given URLs and returns its ID.
func (c *Client) Submit(ctx context.Context, urls []string) (string, error) {
	body, err := json.Marshal(submitRequest{URLs: urls, Formats: []string{"markdown"}})
	if err != nil {
		return "", fmt.Errorf("encoding batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/batch/scrape", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building batch request: %w", err)
	}
	c.setHeaders(req)

	var resp submitResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("backend accepted batch but returned no job ID (error=%q)", resp.Error)
	}

	c.log.Info().
		Str("job_id", resp.ID).
		Int("urls", len(urls)).
		Msg("Batch job submitted")
	return resp.ID, nil
}

// Poll fetches the current status of a job.
func (c *Client) Poll(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/batch/scrape/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	c.setHeaders(req)

	var status JobStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool    `json:"success"`
	Data    JobItem `json:"data"`
	Error   string  `json:"error,omitempty"`
}

// Scrape renders a single URL to markdown, bypassing the job queue. Used as
// a one-off fallback path; batches should go through Submit.
func (c *Client) Scrape(ctx context.Context, rawURL string) (string, error) {
	body, err := json.Marshal(scrapeRequest{URL: rawURL, Formats: []string{"markdown"}})
	if err != nil {
		return "", fmt.Errorf("encoding scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building scrape request: %w", err)
	}
	c.setHeaders(req)

	var resp scrapeResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Data.Markdown == "" {
		return "", fmt.Errorf("backend returned no markdown for %s (error=%q)", rawURL, resp.Error)
	}
	return resp.Data.Markdown, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
