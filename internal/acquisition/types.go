// Package acquisition holds the shared data model of the content-acquisition
// engine: tasks discovered from search-result files, their capture outcomes,
// and the run report consumed by downstream stages.
package acquisition

import "fmt"

// ContentKind identifies the artifact format a capture produced.
type ContentKind string

const (
	KindMarkdown   ContentKind = "markdown"
	KindScreenshot ContentKind = "screenshot"
	KindPDF        ContentKind = "pdf"
)

// Ext returns the artifact file extension for the kind.
func (k ContentKind) Ext() string {
	switch k {
	case KindMarkdown:
		return ".md"
	case KindScreenshot:
		return ".png"
	case KindPDF:
		return ".pdf"
	}
	return ".bin"
}

// SourceType values recorded in aggregate metadata.
const (
	SourceTypeWeb          = "web"
	SourceTypeLocalCapture = "local-capture"
)

// CaptureTask is one URL scheduled for content capture. Tasks are immutable
// after extraction; workers and the batch orchestrator only read them.
type CaptureTask struct {
	URL        string `json:"url"`
	Category   string `json:"category"`
	Question   string `json:"question,omitempty"`
	SourceFile string `json:"source_file"`
	// IntentDocument is true when the originating search directive implied a
	// document, e.g. a filetype:pdf dork or an explicit is_pdf tag.
	IntentDocument bool `json:"intent_document"`
}

// CaptureResult is the outcome of processing one CaptureTask. Exactly one
// result exists per task that entered the engine.
type CaptureResult struct {
	Task       CaptureTask `json:"task"`
	Success    bool        `json:"success"`
	OutputPath string      `json:"output_path,omitempty"`
	Kind       ContentKind `json:"kind"`
	Error      string      `json:"error,omitempty"`
}

// Report summarizes a completed acquisition run.
type Report struct {
	Extracted int64 `json:"extracted"`
	Denied    int64 `json:"denied"`
	Success   int64 `json:"success"`
	Failed    int64 `json:"failed"`
}

func (r Report) String() string {
	return fmt.Sprintf("extracted=%d denied=%d success=%d failed=%d",
		r.Extracted, r.Denied, r.Success, r.Failed)
}
