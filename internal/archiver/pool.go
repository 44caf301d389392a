package archiver

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/article-archiver/internal/domain"
	"go.uber.org/zap"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("archive pool stopped")

// Runner executes a single archive job.
type Runner interface {
	Run(ctx context.Context, job Job) (*domain.ArchiveRecord, error)
}

// Pool manages the worker pool that archives submitted URLs. Every task is
// written to its own directory under root.
type Pool struct {
	runner    Runner
	root      string
	workers   int
	timeout   time.Duration
	logger    *zap.Logger
	taskQueue chan domain.ArchiveTask
	mu        sync.RWMutex
	stopped   bool
	wg        sync.WaitGroup
}

func NewPool(r Runner, root string, workers int, timeout time.Duration, l *zap.Logger) *Pool {
	return &Pool{
		runner:    r,
		root:      root,
		workers:   workers,
		timeout:   timeout,
		logger:    l,
		taskQueue: make(chan domain.ArchiveTask, workers*2),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops accepting tasks and waits until the queued ones are processed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.taskQueue)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues task. It blocks while the queue is full.
func (p *Pool) Submit(task domain.ArchiveTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.taskQueue <- task
	return nil
}

// JobFor lays out the output files of task under the pool root.
func (p *Pool) JobFor(task domain.ArchiveTask) Job {
	dir := filepath.Join(p.root, task.ID)
	return Job{
		ID:           task.ID,
		URL:          task.URL,
		OutputHTML:   filepath.Join(dir, "article.html"),
		ImagesDir:    filepath.Join(dir, "images"),
		MarkdownPath: filepath.Join(dir, "article.md"),
		ManifestPath: filepath.Join(dir, "manifest.yaml"),
		Force:        task.Force,
	}
}

// worker drains the queue until Stop closes it, so accepted tasks are not lost.
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.taskQueue {
		p.process(task)
	}
}

func (p *Pool) process(task domain.ArchiveTask) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	rec, err := p.runner.Run(ctx, p.JobFor(task))
	if err != nil {
		if errors.Is(err, ErrRecentlyArchived) {
			return
		}
		p.logger.Warn("archive task failed", zap.String("archive_id", task.ID), zap.String("url", task.URL), zap.Error(err))
		return
	}
	p.logger.Info("archive task done", zap.String("archive_id", rec.ID), zap.String("url", rec.URL))
}
