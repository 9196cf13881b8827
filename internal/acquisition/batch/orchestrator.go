package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/pkg/logging"
)

// State names for a batch run, in lifecycle order.
const (
	StateIdle      = "idle"
	StateSubmitted = "submitted"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Store persists one markdown artifact and returns its path. Matches the
// worker pool's store contract so the engine can share one implementation.
type Store func(task acquisition.CaptureTask, data []byte, kind acquisition.ContentKind) (string, error)

// Orchestrator drives one batch scrape job from submission to a terminal
// state. It is single-use: create a new one per run.
type Orchestrator struct {
	client   *Client
	interval time.Duration
	maxWait  time.Duration
	store    Store
	sink     func(acquisition.CaptureResult)

	state     atomic.Value // string
	succeeded atomic.Int64
	failed    atomic.Int64

	log zerolog.Logger
}

// NewOrchestrator wires a batch run. interval is the fixed poll cadence;
// maxWait caps total polling time before the job is declared failed.
func NewOrchestrator(client *Client, interval, maxWait time.Duration, store Store, sink func(acquisition.CaptureResult)) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		interval: interval,
		maxWait:  maxWait,
		store:    store,
		sink:     sink,
		log:      logging.GetLogger("batch-orchestrator"),
	}
	o.state.Store(StateIdle)
	return o
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() string { return o.state.Load().(string) }

// Succeeded reports tasks resolved with stored markdown.
func (o *Orchestrator) Succeeded() int64 { return o.succeeded.Load() }

// Failed reports tasks resolved without usable content.
func (o *Orchestrator) Failed() int64 { return o.failed.Load() }

// Run submits every task's URL as one job and polls until the backend
// reports a terminal status or the poll ceiling expires. Every task receives
// exactly one result; a submission or poll error fails the whole batch.
func (o *Orchestrator) Run(ctx context.Context, tasks []acquisition.CaptureTask) error {
	if len(tasks) == 0 {
		o.state.Store(StateCompleted)
		return nil
	}

	urls := make([]string, len(tasks))
	for i, t := range tasks {
		urls[i] = t.URL
	}

	jobID, err := o.client.Submit(ctx, urls)
	if err != nil {
		berr := &acquisition.BatchError{Stage: "submit", Err: err}
		o.failAll(tasks, berr)
		o.state.Store(StateFailed)
		return berr
	}
	o.state.Store(StateSubmitted)

	status, err := o.awaitJob(ctx, jobID)
	if err != nil {
		berr := &acquisition.BatchError{JobID: jobID, Stage: "poll", Err: err}
		o.failAll(tasks, berr)
		o.state.Store(StateFailed)
		return berr
	}

	if status.Status == JobStatusFailed {
		berr := &acquisition.BatchError{JobID: jobID, Stage: "job", Err: fmt.Errorf("backend reported job failed")}
		o.failAll(tasks, berr)
		o.state.Store(StateFailed)
		return berr
	}

	o.resolve(jobID, tasks, status)
	o.state.Store(StateCompleted)
	return nil
}

// awaitJob polls at a fixed cadence until the job leaves the scraping state
// or the ceiling expires.
func (o *Orchestrator) awaitJob(ctx context.Context, jobID string) (*JobStatus, error) {
	o.state.Store(StateActive)
	deadline := time.Now().Add(o.maxWait)
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := o.client.Poll(ctx, jobID)
		if err != nil {
			return nil, err
		}

		o.log.Debug().
			Str("job_id", jobID).
			Str("status", status.Status).
			Int("items", len(status.Data)).
			Msg("Batch job polled")

		if status.Status != JobStatusScraping {
			return status, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("job %s still scraping after %s", jobID, o.maxWait)
		}
	}
}

// resolve matches completed items back to their tasks by URL and stores the
// markdown. Tasks the backend returned nothing for fail; items for URLs we
// never submitted are dropped.
func (o *Orchestrator) resolve(jobID string, tasks []acquisition.CaptureTask, status *JobStatus) {
	byURL := make(map[string]acquisition.CaptureTask, len(tasks))
	for _, t := range tasks {
		byURL[t.URL] = t
	}

	resolved := make(map[string]bool, len(tasks))
	for _, item := range status.Data {
		task, ok := byURL[item.Metadata.SourceURL]
		if !ok {
			o.log.Warn().
				Str("job_id", jobID).
				Str("url", item.Metadata.SourceURL).
				Msg("Backend returned content for an unsubmitted URL, dropping")
			continue
		}
		if resolved[task.URL] {
			continue
		}
		resolved[task.URL] = true

		if item.Markdown == "" {
			o.fail(task, fmt.Errorf("backend returned empty markdown"))
			continue
		}

		path, err := o.store(task, []byte(item.Markdown), acquisition.KindMarkdown)
		if err != nil {
			o.fail(task, err)
			continue
		}
		o.succeeded.Add(1)
		o.sink(acquisition.CaptureResult{
			Task:       task,
			Success:    true,
			OutputPath: path,
			Kind:       acquisition.KindMarkdown,
		})
	}

	for _, t := range tasks {
		if !resolved[t.URL] {
			o.fail(t, fmt.Errorf("job %s completed without content for this URL", jobID))
		}
	}

	o.log.Info().
		Str("job_id", jobID).
		Int64("succeeded", o.Succeeded()).
		Int64("failed", o.Failed()).
		Msg("Batch job resolved")
}

func (o *Orchestrator) fail(task acquisition.CaptureTask, err error) {
	o.log.Warn().
		Str("url", task.URL).
		Err(err).
		Msg("Batch task failed")
	o.failed.Add(1)
	o.sink(acquisition.CaptureResult{Task: task, Success: false, Error: err.Error()})
}

func (o *Orchestrator) failAll(tasks []acquisition.CaptureTask, err error) {
	for _, t := range tasks {
		o.failed.Add(1)
		o.sink(acquisition.CaptureResult{Task: t, Success: false, Error: err.Error()})
	}
}
