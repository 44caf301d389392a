package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/user/article-archiver/internal/config"
	"github.com/user/article-archiver/internal/crawler"
	"github.com/user/article-archiver/internal/extractor"
	"github.com/user/article-archiver/internal/proxy"
	"github.com/user/article-archiver/pkg/logger"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archiver",
		Short: "Save online articles as self-contained local HTML",
		Long: `Archiver downloads an article page, keeps only its main content,
stores every image next to it and writes a standalone HTML file that
opens without network access.

Settings come from the environment (or a .env file) and can be
overridden with flags.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// app is what both subcommands share once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	proxies *proxy.Manager
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  l,
		proxies: proxy.NewManager(cfg.Proxies, cfg.UserAgents),
	}, nil
}

// fetchers returns the page fetcher and the image downloader. The cleanup
// func releases the headless browser when rendering is enabled.
func (a *app) fetchers() (crawler.Fetcher, *crawler.HTTPFetcher, func()) {
	httpFetcher := crawler.NewHTTPFetcher(a.cfg.RequestTimeout, a.proxies, a.logger)
	if !a.cfg.Render {
		return httpFetcher, httpFetcher, func() {}
	}
	rendered := crawler.NewRenderedFetcher(a.cfg.RequestTimeout, a.proxies.GetUserAgent(), a.proxies.GetProxy(), a.logger)
	return rendered, httpFetcher, rendered.Close
}

func (a *app) strategies() []extractor.Strategy {
	if len(a.cfg.ContentSelectors) > 0 {
		return extractor.SelectorStrategies(a.cfg.ContentSelectors)
	}
	return extractor.DefaultStrategies()
}
