package extract

import (
	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/pkg/logging"
)

// Extractor walks an input directory of result files and produces the
// deduplicated task sequence for the capture stage.
type Extractor struct {
	log zerolog.Logger
}

func NewExtractor() *Extractor {
	return &Extractor{log: logging.GetLogger("extractor")}
}

// Extract enumerates result files under root and returns one CaptureTask per
// distinct URL. The first file (in sorted traversal order) that mentions a
// URL wins its category/question provenance. Unreadable or malformed files
// are logged and skipped; they never abort the remaining files.
func (e *Extractor) Extract(root string) ([]acquisition.CaptureTask, error) {
	files, err := FindResultFiles(root)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("input_root", root).
		Int("result_files", len(files)).
		Msg("Extracting capture tasks")

	seen := make(map[string]struct{})
	var tasks []acquisition.CaptureTask

	for _, file := range files {
		entries, err := ParseResultFile(file)
		if err != nil {
			e.log.Error().Err(err).Str("file", file).Msg("Skipping unreadable result file")
			continue
		}

		for _, entry := range entries {
			if _, dup := seen[entry.URL]; dup {
				e.log.Debug().Str("url", entry.URL).Str("file", file).Msg("Duplicate URL dropped")
				continue
			}
			seen[entry.URL] = struct{}{}

			tasks = append(tasks, acquisition.CaptureTask{
				URL:            entry.URL,
				Category:       entry.Category,
				Question:       entry.Question,
				SourceFile:     file,
				IntentDocument: entry.IntentDocument,
			})
		}
	}

	e.log.Info().
		Int("tasks", len(tasks)).
		Msg("Extraction completed")

	return tasks, nil
}
