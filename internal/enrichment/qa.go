// Package enrichment turns stored markdown artifacts into a semi-synthetic
// Q&A dataset by calling an Ollama-compatible generate endpoint per
// document with a structured output format.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/pkg/logging"
	"github.com/corpusworks/harvester/pkg/retry"
)

// DatasetFileName is the Q&A dataset written next to the artifacts.
const DatasetFileName = "qna_dataset.json"

// QAPair is one generated question/answer pair.
type QAPair struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// GeneratorConfig holds Q&A synthesis settings
type GeneratorConfig struct {
	BaseURL   string
	Model     string
	AuthToken string
	Prompt    string
	Timeout   time.Duration
	Retry     retry.Policy
}

// DefaultGeneratorConfig returns generation defaults for a local Ollama
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BaseURL: "http://localhost:11434",
		Model:   "gemma3:27b",
		Prompt: "You are an expert in the document's domain. Generate question and " +
			"answer pairs that cover the key facts of the following document.",
		Timeout: 2 * time.Minute,
		Retry:   retry.DefaultPolicy(),
	}
}

// Generator calls the model backend once per document and folds the pairs
// into a single dataset.
type Generator struct {
	cfg  GeneratorConfig
	http *http.Client
	log  zerolog.Logger
}

// NewGenerator creates a generator from config.
func NewGenerator(cfg GeneratorConfig) *Generator {
	return &Generator{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logging.GetLogger("enrichment"),
	}
}

type generateRequest struct {
	Model  string          `json:"model"`
	Prompt string          `json:"prompt"`
	Stream bool            `json:"stream"`
	Format json.RawMessage `json:"format"`
}

// qnaFormat is the structured-output schema the backend must fill.
var qnaFormat = json.RawMessage(`{
	"type": "object",
	"properties": {
		"qnaList": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"q": {"type": "string"},
					"a": {"type": "string"}
				}
			}
		}
	},
	"required": ["qnaList"]
}`)

type generateResponse struct {
	Response string `json:"response"`
}

type qnaEnvelope struct {
	QnaList []QAPair `json:"qnaList"`
}

// GenerateDataset walks inputDir for .md artifacts, synthesizes Q&A pairs
// per document, and writes the combined dataset into outDir. Per-document
// failures are logged and skipped; the dataset holds what succeeded.
func (g *Generator) GenerateDataset(ctx context.Context, inputDir, outDir string) (string, error) {
	files, err := findMarkdownFiles(inputDir)
	if err != nil {
		return "", fmt.Errorf("enumerating artifacts: %w", err)
	}
	if len(files) == 0 {
		g.log.Warn().Str("dir", inputDir).Msg("No markdown artifacts to enrich")
	}

	var dataset []QAPair
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			g.log.Error().Err(err).Str("file", file).Msg("Skipping unreadable artifact")
			continue
		}

		g.log.Info().Str("file", file).Msg("Generating Q&A pairs")

		pairs, err := g.generate(ctx, string(content))
		if err != nil {
			g.log.Error().Err(err).Str("file", file).Msg("Q&A generation failed, skipping document")
			continue
		}
		dataset = append(dataset, pairs...)
	}

	path := filepath.Join(outDir, DatasetFileName)
	if err := writeDataset(path, dataset); err != nil {
		return "", err
	}

	g.log.Info().
		Int("documents", len(files)).
		Int("pairs", len(dataset)).
		Str("path", path).
		Msg("Q&A dataset written")
	return path, nil
}

// generate calls the backend for one document, bounded by the retry policy.
func (g *Generator) generate(ctx context.Context, document string) ([]QAPair, error) {
	var pairs []QAPair
	err := g.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		pairs, err = g.generateOnce(ctx, document)
		return err
	})
	return pairs, err
}

func (g *Generator) generateOnce(ctx context.Context, document string) ([]QAPair, error) {
	body, err := json.Marshal(generateRequest{
		Model:  g.cfg.Model,
		Prompt: g.cfg.Prompt + "\n" + document,
		Stream: false,
		Format: qnaFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.AuthToken)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling generate: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading generate response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generate returned %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("decoding generate response: %w", err)
	}

	// The model's structured output arrives as a JSON string inside the
	// response field.
	var envelope qnaEnvelope
	if err := json.Unmarshal([]byte(gr.Response), &envelope); err != nil {
		return nil, fmt.Errorf("decoding qnaList payload: %w", err)
	}

	return normalize(envelope.QnaList), nil
}

// normalize collapses whitespace and drops pairs with an empty question,
// matching what downstream training preparation expects.
func normalize(pairs []QAPair) []QAPair {
	cleaned := make([]QAPair, 0, len(pairs))
	for _, p := range pairs {
		q := strings.Join(strings.Fields(p.Q), " ")
		if q == "" {
			continue
		}
		cleaned = append(cleaned, QAPair{Q: q, A: strings.TrimSpace(p.A)})
	}
	return cleaned
}

func findMarkdownFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func writeDataset(path string, dataset []QAPair) error {
	if dataset == nil {
		dataset = []QAPair{}
	}
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}
