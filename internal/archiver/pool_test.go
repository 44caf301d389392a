package archiver

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/article-archiver/internal/domain"
	"go.uber.org/zap"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []Job
	done chan struct{}
	err  error
}

func (r *recordingRunner) Run(_ context.Context, job Job) (*domain.ArchiveRecord, error) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.done <- struct{}{}
	if r.err != nil {
		return nil, r.err
	}
	return &domain.ArchiveRecord{ID: job.ID, URL: job.URL}, nil
}

func TestPool_ProcessesSubmittedTasks(t *testing.T) {
	runner := &recordingRunner{done: make(chan struct{}, 4)}
	p := NewPool(runner, "archives", 2, time.Minute, zap.NewNop())
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Submit(domain.ArchiveTask{ID: "a", URL: "https://example.com/1"}))
	require.NoError(t, p.Submit(domain.ArchiveTask{ID: "b", URL: "https://example.com/2", Force: true}))

	for i := 0; i < 2; i++ {
		select {
		case <-runner.done:
		case <-time.After(2 * time.Second):
			t.Fatal("task was not processed")
		}
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.jobs, 2)
	byID := map[string]Job{}
	for _, j := range runner.jobs {
		byID[j.ID] = j
	}
	assert.False(t, byID["a"].Force)
	assert.True(t, byID["b"].Force)
}

func TestPool_RecentlyArchivedIsNotAnError(t *testing.T) {
	runner := &recordingRunner{done: make(chan struct{}, 1), err: ErrRecentlyArchived}
	p := NewPool(runner, "archives", 1, time.Minute, zap.NewNop())
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Submit(domain.ArchiveTask{ID: "a", URL: "https://example.com/1"}))
	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed")
	}
}

func TestPool_DuplicateTaskIsNotLeftProcessing(t *testing.T) {
	store := &fakeStore{}
	dedup := &fakeDeduper{recent: map[string]bool{articleURL: true}}
	a, _ := newArchiver(t, &fakeFetcher{body: articleHTML}, &fakeDownloader{}, WithRunStore(store), WithDeduper(dedup))

	// The API records the task before queueing it.
	task := domain.ArchiveTask{ID: "task-1", URL: articleURL}
	require.NoError(t, store.SaveRun(context.Background(), &domain.ArchiveRecord{ID: task.ID, URL: task.URL, Status: domain.StatusProcessing}))

	p := NewPool(a, t.TempDir(), 1, time.Minute, zap.NewNop())
	p.Start()
	require.NoError(t, p.Submit(task))
	p.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.history, 2)
	last := store.history[len(store.history)-1]
	assert.Equal(t, "task-1", last.ID)
	assert.Equal(t, domain.StatusSkipped, last.Status)
}

func TestPool_StopDrainsQueuedTasks(t *testing.T) {
	release := make(chan struct{})
	runner := &blockingRunner{release: release}
	// Two workers give a queue of four, so no Submit blocks before release.
	p := NewPool(runner, "archives", 2, time.Minute, zap.NewNop())
	p.Start()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Submit(domain.ArchiveTask{ID: id, URL: "https://example.com/" + id}))
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, runner.ids())
}

type blockingRunner struct {
	release chan struct{}
	mu      sync.Mutex
	seen    []string
}

func (b *blockingRunner) Run(_ context.Context, job Job) (*domain.ArchiveRecord, error) {
	<-b.release
	b.mu.Lock()
	b.seen = append(b.seen, job.ID)
	b.mu.Unlock()
	return &domain.ArchiveRecord{ID: job.ID, URL: job.URL}, nil
}

func (b *blockingRunner) ids() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen...)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(&recordingRunner{done: make(chan struct{}, 1)}, "archives", 1, time.Minute, zap.NewNop())
	p.Start()
	p.Stop()
	p.Stop()

	err := p.Submit(domain.ArchiveTask{ID: "late", URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestPool_JobFor(t *testing.T) {
	p := NewPool(nil, "archives", 1, time.Minute, zap.NewNop())
	job := p.JobFor(domain.ArchiveTask{ID: "42", URL: "https://example.com", Force: true})

	dir := filepath.Join("archives", "42")
	assert.Equal(t, Job{
		ID:           "42",
		URL:          "https://example.com",
		OutputHTML:   filepath.Join(dir, "article.html"),
		ImagesDir:    filepath.Join(dir, "images"),
		MarkdownPath: filepath.Join(dir, "article.md"),
		ManifestPath: filepath.Join(dir, "manifest.yaml"),
		Force:        true,
	}, job)
	assert.Equal(t, "images", linkPrefix(job.OutputHTML, job.ImagesDir))
}
