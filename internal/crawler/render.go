package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// RenderedFetcher loads pages in headless Chrome so that content inserted by
// scripts is present in the returned markup.
type RenderedFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
}

func NewRenderedFetcher(timeout time.Duration, userAgent, proxyServer string, l *zap.Logger) *RenderedFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if proxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(proxyServer))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &RenderedFetcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     timeout,
		logger:      l,
	}
}

// Fetch navigates to url, waits for the body and returns the rendered document.
func (f *RenderedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocCtx)
	defer taskCancel()

	// chromedp contexts do not inherit the caller's cancellation
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.timeout)
	defer cancel()

	f.logger.Info("rendering page", zap.String("url", url))

	var htmlContent string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return htmlContent, nil
}

// Close shuts down the browser process.
func (f *RenderedFetcher) Close() {
	f.allocCancel()
}
