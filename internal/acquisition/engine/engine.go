// Package engine drives one acquisition run end to end: task extraction,
// denylist filtering, capture through the worker pool and the batch
// orchestrator, artifact storage, and metadata aggregation.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/internal/acquisition/batch"
	"github.com/corpusworks/harvester/internal/acquisition/capture"
	"github.com/corpusworks/harvester/internal/acquisition/extract"
	"github.com/corpusworks/harvester/internal/acquisition/metadata"
	"github.com/corpusworks/harvester/internal/acquisition/output"
	"github.com/corpusworks/harvester/internal/acquisition/policy"
	"github.com/corpusworks/harvester/internal/acquisition/pool"
	"github.com/corpusworks/harvester/pkg/extractor"
	"github.com/corpusworks/harvester/pkg/logging"
	"github.com/corpusworks/harvester/pkg/pipeline"
)

// Run phases exposed through Snapshot.
const (
	PhaseIdle        = "idle"
	PhaseExtracting  = "extracting"
	PhaseCapturing   = "capturing"
	PhaseAggregating = "aggregating"
	PhaseDone        = "done"
)

// Snapshot is a point-in-time view of a run's progress, served by the
// status API while the run is in flight.
type Snapshot struct {
	RunID     string `json:"run_id"`
	Phase     string `json:"phase"`
	Extracted int64  `json:"extracted"`
	Denied    int64  `json:"denied"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// Engine coordinates the acquisition stage. One Engine serves one run.
type Engine struct {
	cfg      *pipeline.Config
	runID    string
	denylist *policy.Denylist
	factory  capture.SessionFactory
	client   *batch.Client
	mapper   output.Mapper

	phase     atomic.Value // string
	extracted atomic.Int64
	denied    atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu         sync.Mutex
	aggregator *metadata.Aggregator

	log zerolog.Logger
}

// New wires an engine from configuration. factory may be nil only when the
// run is guaranteed to need no browser (markdown mode with no document
// tasks); passing a real factory is always safe since sessions are created
// lazily per worker.
func New(cfg *pipeline.Config, denylist *policy.Denylist, factory capture.SessionFactory, client *batch.Client) *Engine {
	runID := uuid.New().String()[:8]
	mapper := output.Mapper{
		InputRoot:  cfg.Paths.InputRoot,
		OutputRoot: cfg.Paths.OutputRoot,
	}
	e := &Engine{
		cfg:        cfg,
		runID:      runID,
		denylist:   denylist,
		factory:    factory,
		client:     client,
		mapper:     mapper,
		aggregator: metadata.NewAggregator(mapper),
		log:        logging.GetStageLogger("acquisition", runID),
	}
	e.phase.Store(PhaseIdle)
	return e
}

// Snapshot returns the live progress counters. Safe to call from other
// goroutines while Run executes.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		RunID:     e.runID,
		Phase:     e.phase.Load().(string),
		Extracted: e.extracted.Load(),
		Denied:    e.denied.Load(),
		Succeeded: e.succeeded.Load(),
		Failed:    e.failed.Load(),
	}
}

// Run executes the full acquisition stage. Individual task failures never
// abort the run; only extraction-level errors (unreadable input root) do.
func (e *Engine) Run(ctx context.Context) (acquisition.Report, error) {
	e.phase.Store(PhaseExtracting)

	tasks, err := extract.NewExtractor().Extract(e.cfg.Paths.InputRoot)
	if err != nil {
		e.phase.Store(PhaseDone)
		return acquisition.Report{}, fmt.Errorf("extracting tasks: %w", err)
	}
	e.extracted.Store(int64(len(tasks)))

	allowed := e.filter(tasks)
	docTasks, pageTasks := e.partition(allowed)

	e.log.Info().
		Int("extracted", len(tasks)).
		Int64("denied", e.denied.Load()).
		Int("documents", len(docTasks)).
		Int("pages", len(pageTasks)).
		Str("mode", string(e.cfg.Capture.Mode)).
		Msg("Acquisition run starting")

	e.phase.Store(PhaseCapturing)
	e.capture(ctx, docTasks, pageTasks)

	e.phase.Store(PhaseAggregating)
	if _, err := e.aggregator.Write(e.cfg.Paths.OutputRoot); err != nil {
		e.log.Error().Err(err).Msg("Writing datasource metadata failed")
	}
	e.phase.Store(PhaseDone)

	report := acquisition.Report{
		Extracted: int64(len(tasks)),
		Denied:    e.denied.Load(),
		Success:   e.succeeded.Load(),
		Failed:    e.failed.Load(),
	}
	e.log.Info().Str("report", report.String()).Msg("Acquisition run finished")
	return report, nil
}

// filter drops denied-domain tasks before any capture work is scheduled.
func (e *Engine) filter(tasks []acquisition.CaptureTask) []acquisition.CaptureTask {
	allowed := tasks[:0:0]
	for _, t := range tasks {
		if e.denylist.Denied(t.URL) {
			e.denied.Add(1)
			e.log.Debug().Str("url", t.URL).Msg("URL dropped by denylist")
			continue
		}
		allowed = append(allowed, t)
	}
	return allowed
}

// partition splits tasks by capture route. Document-intent tasks always go
// to the local pool; page tasks go to the batch backend in markdown mode
// and to the pool otherwise.
func (e *Engine) partition(tasks []acquisition.CaptureTask) (docTasks, pageTasks []acquisition.CaptureTask) {
	for _, t := range tasks {
		if t.IntentDocument {
			docTasks = append(docTasks, t)
		} else {
			pageTasks = append(pageTasks, t)
		}
	}
	if e.cfg.Capture.Mode != pipeline.ModeMarkdown {
		docTasks = append(docTasks, pageTasks...)
		pageTasks = nil
	}
	return docTasks, pageTasks
}

// capture runs the pool and the batch orchestrator concurrently and waits
// for both to drain. A batch-level failure marks its tasks failed but the
// run continues.
func (e *Engine) capture(ctx context.Context, poolTasks, batchTasks []acquisition.CaptureTask) {
	var wg sync.WaitGroup

	if len(poolTasks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			downloader := capture.NewDownloader(e.cfg.Scrape.HTTPTimeout, e.cfg.Capture.UserAgent)
			var strategy *capture.Strategy
			if e.cfg.Capture.Mode == pipeline.ModeMarkdownLocal {
				strategy = capture.NewLocalMarkdownStrategy(downloader, extractor.NewHTMLExtractor())
			} else {
				strategy = capture.NewStrategy(downloader)
			}
			p := pool.New(e.cfg.Capture.Workers, e.factory, strategy, e.store, e.record)
			if err := p.Run(ctx, poolTasks); err != nil {
				e.log.Warn().Err(err).Msg("Worker pool ended early")
			}
		}()
	}

	if len(batchTasks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := batch.NewOrchestrator(e.client,
				e.cfg.Scrape.PollInterval, e.cfg.Scrape.MaxPollWait, e.store, e.record)
			if err := o.Run(ctx, batchTasks); err != nil {
				e.log.Warn().Err(err).Msg("Batch job failed")
			}
		}()
	}

	wg.Wait()
}

// store writes one complete artifact. The payload lands under a temporary
// name and is renamed into place so a crash never leaves partial content at
// the final path.
func (e *Engine) store(task acquisition.CaptureTask, data []byte, kind acquisition.ContentKind) (string, error) {
	path, err := e.mapper.Map(task.SourceFile, task.URL, kind)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalizing artifact: %w", err)
	}
	return path, nil
}

// record folds one terminal result into the counters and the metadata
// aggregator. Called from pool workers and the orchestrator concurrently.
func (e *Engine) record(result acquisition.CaptureResult) {
	if result.Success {
		e.succeeded.Add(1)
	} else {
		e.failed.Add(1)
	}
	e.mu.Lock()
	e.aggregator.Add(result)
	e.mu.Unlock()
}
