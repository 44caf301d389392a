package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/user/article-archiver/internal/api"
	"github.com/user/article-archiver/internal/archiver"
	"github.com/user/article-archiver/internal/monitoring"
	"github.com/user/article-archiver/internal/storage"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the archive service",
		Long: `Starts the HTTP API that accepts URLs to archive and a pool of workers
that archive them into ARCHIVE_ROOT/<archive id>/.

POSTGRES_URL and REDIS_ADDR are required: runs are recorded in
PostgreSQL and recently archived URLs are tracked in Redis.`,
		Example: `  # Start on the default port 8080
  archiver serve

  # Custom port and archive directory
  archiver serve --port 3000 --root /var/lib/archives`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			cfg, logger := a.cfg, a.logger

			if cfg.PostgresURL == "" || cfg.RedisAddr == "" {
				return errors.New("serve requires POSTGRES_URL and REDIS_ADDR")
			}

			// Initialize Storage Layer
			pgStore, err := storage.NewPostgresStore(cmd.Context(), cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer pgStore.Close()
			if err := pgStore.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate archives table: %w", err)
			}
			redisStore := storage.NewRedisStore(cfg.RedisAddr)
			defer redisStore.Close()

			metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

			fetcher, downloader, closeFetcher := a.fetchers()
			defer closeFetcher()

			arch, err := archiver.New(fetcher, downloader, archiver.Settings{
				Strategies:   a.strategies(),
				ImageDelay:   cfg.ImageDelay,
				ImageWorkers: cfg.ImageWorkers,
				DedupTTL:     cfg.DeduplicationTTL(),
			}, metrics, logger, archiver.WithRunStore(pgStore), archiver.WithDeduper(redisStore))
			if err != nil {
				return err
			}

			pool := archiver.NewPool(arch, cfg.ArchiveRoot, cfg.ArchiveWorkers, 10*time.Minute, logger)
			pool.Start()
			defer pool.Stop()

			server := api.NewServer(api.Options{
				Port:        cfg.ServerPort,
				ArchiveRoot: cfg.ArchiveRoot,
				Submitter:   pool,
				Store:       pgStore,
				Deduper:     redisStore,
				Checks: map[string]api.Pinger{
					"postgres": pgStore,
					"redis":    redisStore,
				},
				Gatherer: prometheus.DefaultGatherer,
			}, logger)

			serverErr := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()
			logger.Info("server started", zap.String("port", cfg.ServerPort), zap.String("root", cfg.ArchiveRoot))

			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down server...")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server forced to shutdown", zap.Error(err))
					return err
				}
				logger.Info("server exiting")
				return nil
			case err := <-serverErr:
				return fmt.Errorf("could not start server: %w", err)
			}
		},
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().String("root", "archives", "Directory archives are written to and served from")

	return cmd
}
