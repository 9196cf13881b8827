// Package metadata folds capture results into the aggregate datasource
// manifest consumed by downstream enrichment stages.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/internal/acquisition/output"
	"github.com/corpusworks/harvester/pkg/logging"
)

// FileName is the manifest written at the output root.
const FileName = "datasource_metadata.json"

// Entry describes one stored artifact.
type Entry struct {
	CategoryName    string `json:"categoryName"`
	Question        string `json:"question"`
	ContentFilePath string `json:"contentFilePath"`
	URL             string `json:"url"`
	SourceType      string `json:"sourceType"`
	// QuestionCount is reserved for the enrichment stage, which fills it in
	// after Q&A synthesis.
	QuestionCount int `json:"questionCount"`
}

// CategoryGroup collects the entries of one category.
type CategoryGroup struct {
	CategoryName string  `json:"categoryName"`
	Entries      []Entry `json:"entries"`
}

// Aggregator accumulates successful capture results grouped by category.
// Categories keep their first-seen order. Safe for single-goroutine use;
// the engine feeds it after both capture paths have drained.
type Aggregator struct {
	mapper output.Mapper
	order  []string
	groups map[string]*CategoryGroup
	log    zerolog.Logger
}

// NewAggregator creates an aggregator; mapper relativizes artifact paths
// against the output root.
func NewAggregator(mapper output.Mapper) *Aggregator {
	return &Aggregator{
		mapper: mapper,
		groups: make(map[string]*CategoryGroup),
		log:    logging.GetLogger("metadata"),
	}
}

// Add records one result. Failed results are ignored; the manifest only
// lists artifacts that exist on disk.
func (a *Aggregator) Add(result acquisition.CaptureResult) {
	if !result.Success {
		return
	}

	rel, err := a.mapper.Rel(result.OutputPath)
	if err != nil {
		a.log.Warn().
			Str("path", result.OutputPath).
			Err(err).
			Msg("Artifact path outside output root, recording as-is")
		rel = result.OutputPath
	}

	sourceType := acquisition.SourceTypeLocalCapture
	if result.Kind == acquisition.KindMarkdown {
		sourceType = acquisition.SourceTypeWeb
	}

	category := result.Task.Category
	group, ok := a.groups[category]
	if !ok {
		group = &CategoryGroup{CategoryName: category, Entries: []Entry{}}
		a.groups[category] = group
		a.order = append(a.order, category)
	}
	group.Entries = append(group.Entries, Entry{
		CategoryName:    category,
		Question:        result.Task.Question,
		ContentFilePath: rel,
		URL:             result.Task.URL,
		SourceType:      sourceType,
	})
}

// Groups returns the accumulated category groups in first-seen order. The
// slice is never nil so the manifest serializes as an array.
func (a *Aggregator) Groups() []CategoryGroup {
	groups := make([]CategoryGroup, 0, len(a.order))
	for _, name := range a.order {
		groups = append(groups, *a.groups[name])
	}
	return groups
}

// Write serializes the manifest into dir. Zero successful results still
// produce a manifest holding an empty array.
func (a *Aggregator) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output root: %w", err)
	}

	data, err := json.MarshalIndent(a.Groups(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", FileName, err)
	}

	total := 0
	for _, g := range a.Groups() {
		total += len(g.Entries)
	}
	a.log.Info().
		Str("path", path).
		Int("categories", len(a.order)).
		Int("entries", total).
		Msg("Datasource metadata written")
	return path, nil
}
