package images

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/article-archiver/internal/domain"
	"github.com/user/article-archiver/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultExt is used when the image URL path has no extension.
const DefaultExt = ".jpg"

// Downloader fetches the bytes of a single image.
type Downloader interface {
	Download(ctx context.Context, url, referer string) ([]byte, error)
}

// Recorder receives per-image outcomes, typically Prometheus counters.
type Recorder interface {
	IncImages(result string)
}

// Options configures a Localizer.
type Options struct {
	// Dir is where image files are written.
	Dir string
	// LinkPrefix is prepended to the file name when rewriting src.
	// Defaults to Dir with forward slashes.
	LinkPrefix string
	// Delay is the minimum spacing between two image requests.
	Delay time.Duration
	// Workers caps the number of downloads in flight. Values below 1 mean 1.
	Workers int
}

// Result summarizes one Process call.
type Result struct {
	Processed  int
	Downloaded int
	Failed     int
	Records    []domain.ImageRecord
}

// Localizer downloads the images of one article and points the markup at the
// local copies. A Localizer serves a single article page.
type Localizer struct {
	downloader Downloader
	pageURL    string
	baseURL    *url.URL
	opts       Options
	recorder   Recorder
	logger     *zap.Logger
	result     Result
}

type job struct {
	sel    *goquery.Selection
	record domain.ImageRecord
	err    error
}

func NewLocalizer(d Downloader, pageURL string, opts Options, rec Recorder, l *zap.Logger) (*Localizer, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LinkPrefix == "" {
		opts.LinkPrefix = filepath.ToSlash(opts.Dir)
	}
	return &Localizer{
		downloader: d,
		pageURL:    pageURL,
		baseURL:    base,
		opts:       opts,
		recorder:   rec,
		logger:     l,
	}, nil
}

// Process localizes every image inside container and returns how many images
// were processed. Images without src or data-src are skipped and not counted.
// Download failures are logged and leave the element untouched.
func (l *Localizer) Process(ctx context.Context, container *goquery.Selection) (int, error) {
	if err := os.MkdirAll(l.opts.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("create images dir: %w", err)
	}

	jobs := l.plan(container)
	if err := l.download(ctx, jobs); err != nil {
		return 0, err
	}

	res := Result{Processed: len(jobs), Records: make([]domain.ImageRecord, 0, len(jobs))}
	for _, j := range jobs {
		if j.err != nil {
			l.logger.Warn("failed to download image",
				zap.Int("sequence", j.record.Sequence),
				zap.String("url", j.record.SourceURL),
				zap.Error(j.err))
			j.record.Status = domain.ImageFailed
			j.record.Error = j.err.Error()
			res.Failed++
			l.count(domain.ImageFailed)
		} else {
			j.sel.SetAttr("src", path.Join(l.opts.LinkPrefix, j.record.LocalFile))
			j.sel.RemoveAttr("data-src")
			j.record.Status = domain.ImageDownloaded
			res.Downloaded++
			l.count(domain.ImageDownloaded)
			l.logger.Info("saved image", zap.Int("sequence", j.record.Sequence), zap.String("file", j.record.LocalFile))
		}
		res.Records = append(res.Records, j.record)
	}

	l.result = res
	l.logger.Info("images processed",
		zap.Int("processed", res.Processed),
		zap.Int("downloaded", res.Downloaded),
		zap.Int("failed", res.Failed))
	return res.Processed, nil
}

// Result returns the outcome of the last Process call.
func (l *Localizer) Result() Result {
	return l.result
}

// plan walks the images in document order and assigns sequence numbers
// before anything is downloaded.
func (l *Localizer) plan(container *goquery.Selection) []*job {
	var jobs []*job
	container.Find("img").Each(func(_ int, img *goquery.Selection) {
		ref := imageRef(img)
		if ref == "" {
			return
		}
		src, err := utils.NormalizeResourceURL(l.baseURL, ref)
		if err != nil {
			src = ref
		}
		seq := len(jobs) + 1
		jobs = append(jobs, &job{
			sel: img,
			record: domain.ImageRecord{
				Sequence:  seq,
				SourceURL: src,
				LocalFile: FileName(seq, src),
			},
		})
	})
	return jobs
}

func (l *Localizer) download(ctx context.Context, jobs []*job) error {
	limit := rate.Inf
	if l.opts.Delay > 0 {
		limit = rate.Every(l.opts.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)
	sem := semaphore.NewWeighted(int64(l.opts.Workers))

	var wg sync.WaitGroup
	for _, j := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}
		if err := limiter.Wait(ctx); err != nil {
			sem.Release(1)
			wg.Wait()
			return err
		}

		l.logger.Info("downloading image", zap.Int("sequence", j.record.Sequence), zap.String("file", j.record.LocalFile))
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			defer sem.Release(1)
			j.err = l.fetch(ctx, j.record)
		}(j)
	}
	wg.Wait()
	return nil
}

func (l *Localizer) fetch(ctx context.Context, rec domain.ImageRecord) error {
	data, err := l.downloader.Download(ctx, rec.SourceURL, l.pageURL)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(l.opts.Dir, rec.LocalFile), data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func (l *Localizer) count(result string) {
	if l.recorder != nil {
		l.recorder.IncImages(result)
	}
}

// imageRef returns src, falling back to data-src. Empty values count as absent.
func imageRef(img *goquery.Selection) string {
	if src := img.AttrOr("src", ""); src != "" {
		return src
	}
	return img.AttrOr("data-src", "")
}

// FileName builds the zero-padded local name for the seq-th image.
func FileName(seq int, imageURL string) string {
	return fmt.Sprintf("image_%03d%s", seq, Ext(imageURL))
}

// Ext returns the extension of the URL path, or DefaultExt.
func Ext(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return DefaultExt
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return DefaultExt
}
