package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/user/article-archiver/internal/archiver"
	"github.com/user/article-archiver/internal/monitoring"
	"github.com/user/article-archiver/internal/storage"
	"go.uber.org/zap"
)

func newFetchCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "fetch [URL]",
		Short: "Archive a single article",
		Long: `Fetches one article, downloads its images into the images directory and
writes the standalone HTML file. The URL argument wins over ARTICLE_URL.

A failed page fetch aborts the run. Image failures are logged and the
original image reference is kept.`,
		Example: `  # Archive the configured article into article.html and images/
  archiver fetch

  # Archive another article, also writing Markdown and a manifest
  archiver fetch https://note.com/user/n/n123 -o out/page.html --images out/images \
    --markdown out/page.md --manifest out/manifest.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			cfg := a.cfg

			if len(args) == 1 {
				cfg.ArticleURL = args[0]
			}
			if u, err := url.Parse(cfg.ArticleURL); err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("invalid article URL %q", cfg.ArticleURL)
			}

			fetcher, downloader, closeFetcher := a.fetchers()
			defer closeFetcher()

			var opts []archiver.Option
			if cfg.PostgresURL != "" {
				pgStore, err := storage.NewPostgresStore(cmd.Context(), cfg.PostgresURL)
				if err != nil {
					return err
				}
				defer pgStore.Close()
				if err := pgStore.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate archives table: %w", err)
				}
				opts = append(opts, archiver.WithRunStore(pgStore))
			}
			if cfg.RedisAddr != "" {
				redisStore := storage.NewRedisStore(cfg.RedisAddr)
				defer redisStore.Close()
				opts = append(opts, archiver.WithDeduper(redisStore))
			}

			arch, err := archiver.New(fetcher, downloader, archiver.Settings{
				Strategies:   a.strategies(),
				ImageDelay:   cfg.ImageDelay,
				ImageWorkers: cfg.ImageWorkers,
				DedupTTL:     cfg.DeduplicationTTL(),
			}, monitoring.NewMetrics(prometheus.NewRegistry()), a.logger, opts...)
			if err != nil {
				return err
			}

			a.logger.Info("starting conversion", zap.String("url", cfg.ArticleURL))
			_, err = arch.Run(cmd.Context(), archiver.Job{
				URL:          cfg.ArticleURL,
				OutputHTML:   cfg.OutputHTML,
				ImagesDir:    cfg.ImagesDir,
				MarkdownPath: cfg.MarkdownOutput,
				ManifestPath: cfg.ManifestOutput,
				Force:        force,
			})
			return fetchResult(err, a.logger)
		},
	}

	f := cmd.Flags()
	f.String("url", "", "Article URL (same as the positional argument)")
	f.StringP("output", "o", "article.html", "Path of the HTML file to write")
	f.String("images", "images", "Directory for downloaded images")
	f.String("markdown", "", "Also write a Markdown rendition to this path")
	f.String("manifest", "", "Also write a YAML manifest of the images to this path")
	f.Duration("timeout", 30*time.Second, "HTTP request timeout")
	f.Duration("delay", 500*time.Millisecond, "Minimum spacing between image requests")
	f.Int("workers", 1, "Concurrent image downloads")
	f.Bool("render", false, "Render the page in headless Chrome before extracting")
	f.String("selector", "", "Content container selectors, separated by ';'")
	f.BoolVar(&force, "force", false, "Archive even if the URL was archived recently")

	return cmd
}

// fetchResult maps a run error to the command result. A URL inside the
// deduplication window is not a failure.
func fetchResult(err error, l *zap.Logger) error {
	if errors.Is(err, archiver.ErrRecentlyArchived) {
		l.Info("article was archived recently, use --force to archive it again")
		return nil
	}
	return err
}
