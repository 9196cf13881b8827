package extract

import (
	"encoding/json"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/internal/search"
)

// documentDork is the search operator that marks a question as
// document-seeking; its presence tags every URL of the entry.
const documentDork = "filetype:pdf"

// Entry is one URL candidate pulled out of a result file, before
// cross-file deduplication.
type Entry struct {
	URL            string
	Category       string
	Question       string
	IntentDocument bool
}

// legacyItem is one element of the legacy map format: either a bare URL
// string or an {url, is_pdf} object.
type legacyItem struct {
	URL   string `json:"url"`
	IsPDF bool   `json:"is_pdf"`
}

// ParseResultFile reads one result file and returns its URL entries.
// Both supported shapes are tried: the current array of search.QuestionResult
// objects, and the legacy {category: [url | {url, is_pdf}]} map. Candidate
// strings that do not parse as absolute URLs are dropped without error.
func ParseResultFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &acquisition.ExtractionError{File: path, Err: err}
	}

	var results []search.QuestionResult
	if err := json.Unmarshal(data, &results); err == nil {
		return entriesFromResults(results), nil
	}

	var legacy map[string][]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, &acquisition.ExtractionError{File: path, Err: err}
	}
	return entriesFromLegacy(legacy), nil
}

func entriesFromResults(results []search.QuestionResult) []Entry {
	var entries []Entry
	for _, r := range results {
		intentDocument := strings.Contains(strings.ToLower(r.Dorks), documentDork)
		for _, raw := range r.URLs {
			if !ValidURL(raw) {
				continue
			}
			entries = append(entries, Entry{
				URL:            raw,
				Category:       r.Category,
				Question:       r.Question,
				IntentDocument: intentDocument,
			})
		}
	}
	return entries
}

func entriesFromLegacy(legacy map[string][]json.RawMessage) []Entry {
	// Map iteration order is random; sort categories so provenance of
	// duplicates within one file stays deterministic.
	categories := make([]string, 0, len(legacy))
	for category := range legacy {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var entries []Entry
	for _, category := range categories {
		for _, raw := range legacy[category] {
			var candidate string
			intentDocument := false

			var item legacyItem
			if err := json.Unmarshal(raw, &item); err == nil && item.URL != "" {
				candidate = item.URL
				intentDocument = item.IsPDF
			} else if err := json.Unmarshal(raw, &candidate); err != nil {
				continue
			}

			if !ValidURL(candidate) {
				continue
			}
			entries = append(entries, Entry{
				URL:            candidate,
				Category:       category,
				IntentDocument: intentDocument,
			})
		}
	}
	return entries
}

// ValidURL reports whether s is an absolute URL with both scheme and host.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
