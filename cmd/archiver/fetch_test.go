package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/article-archiver/internal/archiver"
	"go.uber.org/zap"
)

const testPage = `<html><head><meta property="og:title" content="Test Article"></head>
<body><article><p>Hello</p><img data-src="/img/a.png"></article></body></html>`

func newArticleServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/n/1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testPage)
	})
	mux.HandleFunc("/img/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runFetch(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("PROXIES", "")
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"fetch"}, args...))
	return root.ExecuteContext(context.Background())
}

func outputArgs(dir string) []string {
	return []string{
		"-o", filepath.Join(dir, "article.html"),
		"--images", filepath.Join(dir, "images"),
		"--delay", "0s",
	}
}

func TestFetchCmd(t *testing.T) {
	srv := newArticleServer(t)

	tests := []struct {
		name string
		args func(dir string) []string
	}{
		{"positional url", func(dir string) []string { return append([]string{srv.URL + "/n/1"}, outputArgs(dir)...) }},
		{"url flag", func(dir string) []string { return append([]string{"--url", srv.URL + "/n/1"}, outputArgs(dir)...) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, runFetch(t, tt.args(dir)...))

			page, err := os.ReadFile(filepath.Join(dir, "article.html"))
			require.NoError(t, err)
			assert.Contains(t, string(page), "<title>Test Article</title>")
			assert.Contains(t, string(page), `src="images/image_001.png"`)

			img, err := os.ReadFile(filepath.Join(dir, "images", "image_001.png"))
			require.NoError(t, err)
			assert.Equal(t, "png-bytes", string(img))
		})
	}
}

func TestFetchCmd_InvalidURL(t *testing.T) {
	dir := t.TempDir()
	err := runFetch(t, append([]string{"not a url"}, outputArgs(dir)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid article URL")
}

func TestFetchCmd_PageFetchFailure(t *testing.T) {
	srv := newArticleServer(t)
	dir := t.TempDir()

	err := runFetch(t, append([]string{srv.URL + "/gone"}, outputArgs(dir)...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, archiver.ErrFetchFailed)

	_, statErr := os.Stat(filepath.Join(dir, "article.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchResult(t *testing.T) {
	l := zap.NewNop()
	assert.NoError(t, fetchResult(nil, l))
	assert.NoError(t, fetchResult(archiver.ErrRecentlyArchived, l))

	boom := errors.New("boom")
	assert.ErrorIs(t, fetchResult(boom, l), boom)
}
