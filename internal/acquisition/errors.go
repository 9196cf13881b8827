package acquisition

import "fmt"

// ExtractionError wraps a result file that could not be read or parsed. The
// file is skipped; extraction of the remaining files continues.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// CaptureError wraps a per-task strategy failure. It is recovered inside the
// worker loop and recorded on the CaptureResult.
type CaptureError struct {
	URL      string
	Strategy string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s via %s: %v", e.URL, e.Strategy, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// BatchError wraps a batch-level failure. Submission errors fail the whole
// batch; poll errors fail every still-unresolved task in it.
type BatchError struct {
	JobID string
	Stage string // "submit" or "poll"
	Err   error
}

func (e *BatchError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("batch %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("batch %s (job %s): %v", e.Stage, e.JobID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
