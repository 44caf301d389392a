package archiver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/user/article-archiver/internal/assembler"
	"github.com/user/article-archiver/internal/crawler"
	"github.com/user/article-archiver/internal/domain"
	"github.com/user/article-archiver/internal/extractor"
	"github.com/user/article-archiver/internal/images"
	"github.com/user/article-archiver/internal/monitoring"
	"go.uber.org/zap"
)

var (
	// ErrFetchFailed wraps the fatal page fetch error of a run.
	ErrFetchFailed = errors.New("fetch article page")
	// ErrRecentlyArchived is returned for URLs inside the deduplication window.
	ErrRecentlyArchived = errors.New("URL has been archived recently and force is false")
)

// RunStore persists archive runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec *domain.ArchiveRecord) error
}

// Deduper tracks recently archived URLs.
type Deduper interface {
	IsRecentlyArchived(ctx context.Context, url string) (bool, error)
	MarkAsArchived(ctx context.Context, url string, ttl time.Duration) error
}

// Job describes one archive run. Output paths are used as given.
type Job struct {
	ID           string
	URL          string
	OutputHTML   string
	ImagesDir    string
	MarkdownPath string
	ManifestPath string
	Force        bool
}

// Settings are the per-run knobs shared by every job.
type Settings struct {
	Strategies   []extractor.Strategy
	ImageDelay   time.Duration
	ImageWorkers int
	DedupTTL     time.Duration
}

// Archiver runs the fetch, extract, localize and assemble pipeline.
type Archiver struct {
	fetcher    crawler.Fetcher
	downloader images.Downloader
	assembler  *assembler.Assembler
	markdown   *assembler.Markdown
	settings   Settings
	store      RunStore
	deduper    Deduper
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// Option configures optional Archiver dependencies.
type Option func(*Archiver)

// WithRunStore records every run in s.
func WithRunStore(s RunStore) Option {
	return func(a *Archiver) { a.store = s }
}

// WithDeduper skips URLs archived within Settings.DedupTTL.
func WithDeduper(d Deduper) Option {
	return func(a *Archiver) { a.deduper = d }
}

func New(f crawler.Fetcher, d images.Downloader, s Settings, m *monitoring.Metrics, l *zap.Logger, opts ...Option) (*Archiver, error) {
	asm, err := assembler.New()
	if err != nil {
		return nil, err
	}
	a := &Archiver{
		fetcher:    f,
		downloader: d,
		assembler:  asm,
		markdown:   assembler.NewMarkdown(),
		settings:   s,
		metrics:    m,
		logger:     l,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run archives job.URL. Only a failed page fetch, a dedup hit or an output
// write error makes Run fail; image and metadata problems are logged.
func (a *Archiver) Run(ctx context.Context, job Job) (*domain.ArchiveRecord, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	logger := a.logger.With(zap.String("archive_id", job.ID), zap.String("url", job.URL))

	if !job.Force && a.deduper != nil {
		recent, err := a.deduper.IsRecentlyArchived(ctx, job.URL)
		if err != nil {
			logger.Error("failed to check redis for archived status", zap.Error(err))
		}
		if recent {
			logger.Info("skipping recently archived URL")
			a.metrics.IncRuns(domain.StatusSkipped)
			// A record may already exist for job.ID, so it must not stay processing.
			a.save(ctx, logger, &domain.ArchiveRecord{
				ID:         job.ID,
				URL:        job.URL,
				Status:     domain.StatusSkipped,
				FailReason: ErrRecentlyArchived.Error(),
				OutputPath: job.OutputHTML,
			})
			return nil, ErrRecentlyArchived
		}
	}

	rec := &domain.ArchiveRecord{
		ID:         job.ID,
		URL:        job.URL,
		Status:     domain.StatusProcessing,
		OutputPath: job.OutputHTML,
	}
	a.save(ctx, logger, rec)

	start := time.Now()
	markup, err := a.fetcher.Fetch(ctx, job.URL)
	a.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		a.metrics.IncErrors("fetch_failed")
		return nil, a.fail(ctx, logger, rec, fmt.Errorf("%w: %w", ErrFetchFailed, err))
	}

	localizer, err := images.NewLocalizer(a.downloader, job.URL, images.Options{
		Dir:        job.ImagesDir,
		LinkPrefix: linkPrefix(job.OutputHTML, job.ImagesDir),
		Delay:      a.settings.ImageDelay,
		Workers:    a.settings.ImageWorkers,
	}, a.metrics, logger)
	if err != nil {
		return nil, a.fail(ctx, logger, rec, err)
	}

	logger.Info("extracting content and downloading images")
	data, err := extractor.New(a.settings.Strategies, localizer, logger).Extract(ctx, markup)
	if err != nil {
		a.metrics.IncErrors("extract_failed")
		return nil, a.fail(ctx, logger, rec, err)
	}
	result := localizer.Result()
	rec.Title = data.Title
	rec.ImagesProcessed = result.Processed
	rec.ImagesDownloaded = result.Downloaded
	rec.ImagesFailed = result.Failed

	if err := a.assembler.WriteFile(job.OutputHTML, data, job.URL); err != nil {
		a.metrics.IncErrors("assemble_failed")
		return nil, a.fail(ctx, logger, rec, err)
	}
	logger.Info("html file created", zap.String("path", job.OutputHTML))

	if job.MarkdownPath != "" {
		if err := a.markdown.WriteFile(job.MarkdownPath, data, job.URL); err != nil {
			a.metrics.IncErrors("assemble_failed")
			logger.Warn("failed to write markdown", zap.String("path", job.MarkdownPath), zap.Error(err))
		}
	}
	if job.ManifestPath != "" {
		manifest := &assembler.Manifest{
			SourceURL:   job.URL,
			Title:       data.Title,
			Description: data.Description,
			OutputHTML:  job.OutputHTML,
			ArchivedAt:  time.Now().UTC(),
			Images:      result.Records,
		}
		if err := assembler.WriteManifest(job.ManifestPath, manifest); err != nil {
			a.metrics.IncErrors("assemble_failed")
			logger.Warn("failed to write manifest", zap.String("path", job.ManifestPath), zap.Error(err))
		}
	}

	rec.Status = domain.StatusCompleted
	a.save(ctx, logger, rec)
	a.metrics.IncRuns(domain.StatusCompleted)

	if a.deduper != nil {
		if err := a.deduper.MarkAsArchived(ctx, job.URL, a.settings.DedupTTL); err != nil {
			logger.Error("failed to mark URL as archived", zap.Error(err))
		}
	}

	logger.Info("conversion complete",
		zap.String("html", job.OutputHTML),
		zap.String("images", job.ImagesDir),
		zap.Int("images_downloaded", rec.ImagesDownloaded))
	return rec, nil
}

func (a *Archiver) fail(ctx context.Context, logger *zap.Logger, rec *domain.ArchiveRecord, runErr error) error {
	logger.Error("archive failed", zap.Error(runErr))
	a.metrics.IncRuns(domain.StatusFailed)
	rec.Status = domain.StatusFailed
	rec.FailReason = runErr.Error()
	a.save(ctx, logger, rec)
	return runErr
}

func (a *Archiver) save(ctx context.Context, logger *zap.Logger, rec *domain.ArchiveRecord) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveRun(ctx, rec); err != nil {
		logger.Error("error saving archive record", zap.String("status", rec.Status), zap.Error(err))
		a.metrics.IncErrors("store_failed")
	}
}

// linkPrefix is the images directory as seen from the HTML file.
func linkPrefix(outputHTML, imagesDir string) string {
	rel, err := filepath.Rel(filepath.Dir(outputHTML), imagesDir)
	if err != nil {
		return filepath.ToSlash(imagesDir)
	}
	return filepath.ToSlash(rel)
}
