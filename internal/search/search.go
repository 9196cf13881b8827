// Package search defines the contract with the search-engine collaborator
// and the on-disk shape of per-category result files that the acquisition
// stage consumes.
package search

import "context"

// Searcher retrieves candidate URLs for a question.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// QuestionResult is one search outcome inside a per-category result file.
// Result files are JSON arrays of these objects.
type QuestionResult struct {
	Category string   `json:"category"`
	Question string   `json:"question"`
	Dorks    string   `json:"dorks,omitempty"`
	URLs     []string `json:"urls"`
}
