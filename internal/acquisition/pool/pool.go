// Package pool runs capture tasks across a fixed set of workers, each
// holding its own browser session for its whole lifetime.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/internal/acquisition/capture"
	"github.com/corpusworks/harvester/pkg/logging"
)

// Store persists one captured artifact and returns the path it was written
// to. The pool never writes partial content: Store is only invoked with a
// complete payload.
type Store func(task acquisition.CaptureTask, data []byte, kind acquisition.ContentKind) (string, error)

// workItem wraps a task on the queue. Sentinel items carry no task and tell
// the receiving worker to drain and exit.
type workItem struct {
	task     acquisition.CaptureTask
	sentinel bool
}

// Pool distributes capture tasks over a bounded number of workers. Each
// worker owns one capture session; tasks are never pinned to a worker.
type Pool struct {
	workers  int
	factory  capture.SessionFactory
	strategy *capture.Strategy
	store    Store
	sink     func(acquisition.CaptureResult)

	succeeded atomic.Int64
	failed    atomic.Int64

	log zerolog.Logger
}

// New creates a pool of n workers. The factory is invoked once per worker;
// sink receives every task's terminal result exactly once.
func New(n int, factory capture.SessionFactory, strategy *capture.Strategy, store Store, sink func(acquisition.CaptureResult)) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		workers:  n,
		factory:  factory,
		strategy: strategy,
		store:    store,
		sink:     sink,
		log:      logging.GetLogger("capture-pool"),
	}
}

// Run processes every task and blocks until all workers have exited. Each
// task ends in exactly one terminal state, so on a clean run
// Succeeded()+Failed() equals len(tasks). Cancelling ctx stops dispatch of
// not-yet-enqueued tasks; tasks already on the queue still drain, failing
// fast once their browser operations observe the cancel.
func (p *Pool) Run(ctx context.Context, tasks []acquisition.CaptureTask) error {
	if len(tasks) == 0 {
		return nil
	}

	// Small buffer keeps dispatch blocking on busy workers, so cancellation
	// can interrupt it before every task is enqueued.
	queue := make(chan workItem, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, queue, &wg)
	}

	p.log.Info().
		Int("workers", p.workers).
		Int("tasks", len(tasks)).
		Msg("Capture pool started")

	enqueued := 0
dispatch:
	for _, task := range tasks {
		select {
		case queue <- workItem{task: task}:
			enqueued++
		case <-ctx.Done():
			break dispatch
		}
	}

	// One sentinel per worker; each worker consumes exactly one. Workers
	// drain the queue until their sentinel arrives, so these sends always
	// complete even when the buffer is full at this point.
	for i := 0; i < p.workers; i++ {
		queue <- workItem{sentinel: true}
	}
	wg.Wait()

	p.log.Info().
		Int64("succeeded", p.Succeeded()).
		Int64("failed", p.Failed()).
		Msg("Capture pool drained")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("capture pool interrupted after %d of %d tasks dispatched: %w",
			enqueued, len(tasks), err)
	}
	return nil
}

// Succeeded reports the number of tasks captured and stored so far.
func (p *Pool) Succeeded() int64 { return p.succeeded.Load() }

// Failed reports the number of tasks that ended in failure so far.
func (p *Pool) Failed() int64 { return p.failed.Load() }

func (p *Pool) worker(ctx context.Context, id int, queue <-chan workItem, wg *sync.WaitGroup) {
	defer wg.Done()

	log := p.log.With().Int("worker", id).Logger()

	// A worker whose session cannot start still drains its share of the
	// queue, failing each task, so every task reaches a terminal state.
	sess, sessErr := p.factory(ctx)
	if sessErr != nil {
		log.Error().Err(sessErr).Msg("Capture session unavailable, failing assigned tasks")
		sess = nil
	} else {
		defer func() {
			if cerr := sess.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("Closing capture session")
			}
		}()
	}

	for item := range queue {
		if item.sentinel {
			log.Debug().Msg("Worker received shutdown sentinel")
			return
		}
		p.runTask(ctx, log, sess, item.task, sessErr)
	}
}

// runTask executes one task end to end and reports its terminal result.
// sessionErr is non-nil when the worker has no session; browser-dependent
// strategies are then unavailable and the task usually fails.
func (p *Pool) runTask(ctx context.Context, log zerolog.Logger, sess capture.Capturer, task acquisition.CaptureTask, sessionErr error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("url", task.URL).
				Interface("panic", r).
				Msg("Capture panicked")
			p.fail(task, fmt.Errorf("capture panic: %v", r))
		}
	}()

	data, kind, err := p.strategy.Capture(ctx, sess, task)
	if err != nil {
		if sessionErr != nil {
			err = fmt.Errorf("%w (no capture session: %v)", err, sessionErr)
		}
		log.Warn().
			Str("url", task.URL).
			Str("category", task.Category).
			Err(err).
			Msg("Capture failed")
		p.fail(task, err)
		return
	}

	path, err := p.store(task, data, kind)
	if err != nil {
		log.Error().
			Str("url", task.URL).
			Err(err).
			Msg("Storing captured artifact failed")
		p.fail(task, err)
		return
	}

	log.Info().
		Str("url", task.URL).
		Str("kind", string(kind)).
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Capture complete")
	p.succeeded.Add(1)
	p.sink(acquisition.CaptureResult{
		Task:       task,
		Success:    true,
		OutputPath: path,
		Kind:       kind,
	})
}

func (p *Pool) fail(task acquisition.CaptureTask, err error) {
	p.failed.Add(1)
	p.sink(acquisition.CaptureResult{
		Task:    task,
		Success: false,
		Error:   err.Error(),
	})
}
