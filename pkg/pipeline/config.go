package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/corpusworks/harvester/pkg/logging"
)

// CaptureMode selects how page (non-document) tasks are captured.
type CaptureMode string

const (
	// ModeMarkdown sends page tasks to the remote scrape backend as one batch job.
	ModeMarkdown CaptureMode = "markdown"
	// ModeScreenshot renders page tasks locally and stores full-page screenshots.
	ModeScreenshot CaptureMode = "screenshot"
	// ModeMarkdownLocal renders page tasks locally and extracts markdown from
	// the DOM, for runs without a remote scrape backend.
	ModeMarkdownLocal CaptureMode = "markdown-local"
)

// Config holds complete acquisition pipeline configuration
type Config struct {
	// Logging configuration
	Logging *logging.LogConfig `json:"logging"`

	// Scrape backend configuration
	Scrape *ScrapeConfig `json:"scrape"`

	// Local capture configuration
	Capture *CaptureConfig `json:"capture"`

	// Data paths
	Paths *PathsConfig `json:"paths"`

	// Status API address; empty disables the surface
	StatusAddr string `json:"status_addr"`
}

// ScrapeConfig holds remote scrape backend settings
type ScrapeConfig struct {
	BaseURL      string        `json:"base_url"`
	APIKey       string        `json:"api_key"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxPollWait  time.Duration `json:"max_poll_wait"`
	HTTPTimeout  time.Duration `json:"http_timeout"`
}

// CaptureConfig holds local browser capture settings
type CaptureConfig struct {
	Mode        CaptureMode   `json:"mode"`
	Workers     int           `json:"workers"`
	PageTimeout time.Duration `json:"page_timeout"`
	Headless    bool          `json:"headless"`
	UserAgent   string        `json:"user_agent"`
}

// PathsConfig holds all data directory paths
type PathsConfig struct {
	InputRoot    string `json:"input_root"`
	OutputRoot   string `json:"output_root"`
	DenylistFile string `json:"denylist_file"`
}

// DefaultConfig returns a complete default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultLogConfig(),

		Scrape: &ScrapeConfig{
			BaseURL:      "http://localhost:3002",
			PollInterval: 5 * time.Second,
			MaxPollWait:  15 * time.Minute,
			HTTPTimeout:  30 * time.Second,
		},

		Capture: &CaptureConfig{
			Mode:        ModeMarkdown,
			Workers:     4,
			PageTimeout: 30 * time.Second,
			Headless:    true,
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},

		Paths: &PathsConfig{
			InputRoot:    "data/urls",
			OutputRoot:   "data/datasources",
			DenylistFile: "configs/denied-domains.yaml",
		},
	}
}

// LoadConfig builds configuration from defaults overridden by the
// environment. A .env file in the working directory is honored when present.
func LoadConfig() (*Config, error) {
	// Missing .env is the common case outside local development.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	cfg.Logging.Level = getEnv("HARVESTER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("HARVESTER_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.OutputFile = getEnv("HARVESTER_LOG_FILE", cfg.Logging.OutputFile)

	cfg.Scrape.BaseURL = getEnv("SCRAPE_BASE_URL", cfg.Scrape.BaseURL)
	cfg.Scrape.APIKey = getEnv("SCRAPE_API_KEY", cfg.Scrape.APIKey)
	cfg.Scrape.PollInterval = getEnvDuration("SCRAPE_POLL_INTERVAL", cfg.Scrape.PollInterval)
	cfg.Scrape.MaxPollWait = getEnvDuration("SCRAPE_MAX_POLL_WAIT", cfg.Scrape.MaxPollWait)
	cfg.Scrape.HTTPTimeout = getEnvDuration("SCRAPE_HTTP_TIMEOUT", cfg.Scrape.HTTPTimeout)

	cfg.Capture.Mode = CaptureMode(getEnv("CAPTURE_MODE", string(cfg.Capture.Mode)))
	cfg.Capture.Workers = getEnvInt("CAPTURE_WORKERS", cfg.Capture.Workers)
	cfg.Capture.PageTimeout = getEnvDuration("CAPTURE_PAGE_TIMEOUT", cfg.Capture.PageTimeout)
	cfg.Capture.Headless = getEnvBool("CAPTURE_HEADLESS", cfg.Capture.Headless)
	cfg.Capture.UserAgent = getEnv("CAPTURE_USER_AGENT", cfg.Capture.UserAgent)

	cfg.Paths.InputRoot = getEnv("HARVESTER_INPUT_ROOT", cfg.Paths.InputRoot)
	cfg.Paths.OutputRoot = getEnv("HARVESTER_OUTPUT_ROOT", cfg.Paths.OutputRoot)
	cfg.Paths.DenylistFile = getEnv("HARVESTER_DENYLIST_FILE", cfg.Paths.DenylistFile)

	cfg.StatusAddr = getEnv("HARVESTER_STATUS_ADDR", cfg.StatusAddr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Capture.Workers < 1 {
		return fmt.Errorf("capture workers must be >= 1, got %d", c.Capture.Workers)
	}
	switch c.Capture.Mode {
	case ModeMarkdown, ModeScreenshot, ModeMarkdownLocal:
	default:
		return fmt.Errorf("unknown capture mode %q", c.Capture.Mode)
	}
	if c.Scrape.PollInterval <= 0 {
		return fmt.Errorf("scrape poll interval must be positive")
	}
	if c.Scrape.MaxPollWait <= 0 {
		return fmt.Errorf("scrape max poll wait must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
