package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/article-archiver/internal/proxy"
	"go.uber.org/zap"
)

// ErrUnexpectedStatus indicates an HTTP response outside the 2xx range.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Fetcher retrieves the markup of an article page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages and images with a plain HTTP client that presents
// itself as a desktop browser.
type HTTPFetcher struct {
	client       *http.Client
	proxyManager *proxy.Manager
	logger       *zap.Logger
}

func NewHTTPFetcher(timeout time.Duration, pm *proxy.Manager, l *zap.Logger) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = pm.ProxyFunc()

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		proxyManager: pm,
		logger:       l,
	}
}

// Fetch performs a single GET for url and returns the body as text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.logger.Info("fetching page", zap.String("url", url))
	body, status, err := f.get(ctx, url, "")
	if err != nil {
		return "", err
	}
	f.logger.Info("fetched page", zap.String("url", url), zap.Int("status", status), zap.Int("bytes", len(body)))
	return string(body), nil
}

// Download fetches a resource referenced by an article. The referer is sent
// so hosts that check hotlinking serve the file.
func (f *HTTPFetcher) Download(ctx context.Context, url, referer string) ([]byte, error) {
	body, _, err := f.get(ctx, url, referer)
	return body, err
}

func (f *HTTPFetcher) get(ctx context.Context, url, referer string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if ua := f.proxyManager.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
