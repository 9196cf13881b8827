package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/harvester/internal/acquisition"
	"github.com/corpusworks/harvester/internal/acquisition/capture"
)

type fakeSession struct {
	screenshotData []byte
	screenshotErr  error
	delay          time.Duration

	closed atomic.Bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *fakeSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return s.screenshotData, s.screenshotErr
}

func (s *fakeSession) PrintPDF(ctx context.Context) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSession) HTML(ctx context.Context) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

func pageTasks(n int) []acquisition.CaptureTask {
	tasks := make([]acquisition.CaptureTask, n)
	for i := range tasks {
		tasks[i] = acquisition.CaptureTask{
			URL:      fmt.Sprintf("https://example.org/page-%d", i),
			Category: "networking",
		}
	}
	return tasks
}

type resultCollector struct {
	mu      sync.Mutex
	results []acquisition.CaptureResult
}

func (c *resultCollector) sink(r acquisition.CaptureResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *resultCollector) all() []acquisition.CaptureResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]acquisition.CaptureResult(nil), c.results...)
}

func memStore(task acquisition.CaptureTask, data []byte, kind acquisition.ContentKind) (string, error) {
	return "out/" + task.Category + kind.Ext(), nil
}

func TestPoolProcessesEveryTaskExactlyOnce(t *testing.T) {
	var sessions []*fakeSession
	var mu sync.Mutex
	factory := func(ctx context.Context) (capture.Capturer, error) {
		s := &fakeSession{screenshotData: []byte("png")}
		mu.Lock()
		sessions = append(sessions, s)
		mu.Unlock()
		return s, nil
	}

	collector := &resultCollector{}
	p := New(3, factory, capture.NewStrategy(capture.NewDownloader(time.Second, "")), memStore, collector.sink)

	tasks := pageTasks(20)
	require.NoError(t, p.Run(context.Background(), tasks))

	results := collector.all()
	assert.Len(t, results, 20)
	assert.Equal(t, int64(20), p.Succeeded())
	assert.Equal(t, int64(0), p.Failed())
	assert.Equal(t, int64(20), p.Succeeded()+p.Failed())

	seen := make(map[string]bool)
	for _, r := range results {
		assert.False(t, seen[r.Task.URL], "duplicate result for %s", r.Task.URL)
		seen[r.Task.URL] = true
		assert.True(t, r.Success)
		assert.NotEmpty(t, r.OutputPath)
	}

	// One session per worker, all closed after Run returns.
	assert.Len(t, sessions, 3)
	for _, s := range sessions {
		assert.True(t, s.closed.Load())
	}
}

func TestPoolCountsFailuresWithoutStopping(t *testing.T) {
	factory := func(ctx context.Context) (capture.Capturer, error) {
		return &fakeSession{screenshotErr: errors.New("tab crashed")}, nil
	}

	collector := &resultCollector{}
	p := New(2, factory, capture.NewStrategy(capture.NewDownloader(time.Second, "")), memStore, collector.sink)

	require.NoError(t, p.Run(context.Background(), pageTasks(8)))

	assert.Equal(t, int64(0), p.Succeeded())
	assert.Equal(t, int64(8), p.Failed())
	for _, r := range collector.all() {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
		assert.Empty(t, r.OutputPath)
	}
}

func TestPoolFailsTasksWhenSessionUnavailable(t *testing.T) {
	factory := func(ctx context.Context) (capture.Capturer, error) {
		return nil, errors.New("browser missing")
	}

	collector := &resultCollector{}
	p := New(2, factory, capture.NewStrategy(capture.NewDownloader(time.Second, "")), memStore, collector.sink)

	require.NoError(t, p.Run(context.Background(), pageTasks(5)))

	// Every task still reaches a terminal state.
	assert.Equal(t, int64(5), p.Succeeded()+p.Failed())
	assert.Equal(t, int64(5), p.Failed())
	for _, r := range collector.all() {
		assert.Contains(t, r.Error, "browser missing")
	}
}

func TestPoolCountsStoreFailures(t *testing.T) {
	factory := func(ctx context.Context) (capture.Capturer, error) {
		return &fakeSession{screenshotData: []byte("png")}, nil
	}
	store := func(task acquisition.CaptureTask, data []byte, kind acquisition.ContentKind) (string, error) {
		return "", errors.New("disk full")
	}

	collector := &resultCollector{}
	p := New(1, factory, capture.NewStrategy(capture.NewDownloader(time.Second, "")), store, collector.sink)

	require.NoError(t, p.Run(context.Background(), pageTasks(3)))
	assert.Equal(t, int64(3), p.Failed())
}

func TestPoolStopsDispatchOnCancel(t *testing.T) {
	factory := func(ctx context.Context) (capture.Capturer, error) {
		return &fakeSession{screenshotData: []byte("png"), delay: 50 * time.Millisecond}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	collector := &resultCollector{}
	p := New(1, factory, capture.NewStrategy(capture.NewDownloader(time.Second, "")), memStore, collector.sink)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, pageTasks(100)) }()

	time.Sleep(120 * time.Millisecond)
	cancel()

	// Already-queued tasks fail fast once navigation observes the cancel, so
	// the run drains well before the 5s it would take uncancelled.
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain after cancel")
	}

	// Dispatch stopped early: with one worker at ~50ms per task plus a
	// buffer of one, only a handful of the 100 tasks were ever enqueued.
	acked := p.Succeeded() + p.Failed()
	assert.Positive(t, acked)
	assert.Less(t, acked, int64(100))

	// Tasks that were enqueued before the cancel still reached a terminal
	// state; the rest were never dispatched at all.
	assert.Len(t, collector.all(), int(acked))
}

func TestPoolRunWithNoTasks(t *testing.T) {
	called := false
	factory := func(ctx context.Context) (capture.Capturer, error) {
		called = true
		return &fakeSession{}, nil
	}
	p := New(4, factory, capture.NewStrategy(capture.NewDownloader(time.Second, "")), memStore, func(acquisition.CaptureResult) {})

	require.NoError(t, p.Run(context.Background(), nil))
	assert.False(t, called, "no workers should start for an empty task list")
}
