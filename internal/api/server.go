package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/article-archiver/internal/domain"
	"go.uber.org/zap"
)

// Submitter queues archive tasks for the worker pool.
type Submitter interface {
	Submit(task domain.ArchiveTask) error
}

// StatusStore reads and records archive runs.
type StatusStore interface {
	SaveRun(ctx context.Context, rec *domain.ArchiveRecord) error
	GetArchiveStatus(ctx context.Context, url string) (*domain.ArchiveStatusResponse, error)
}

// Deduper reports whether a URL was archived recently.
type Deduper interface {
	IsRecentlyArchived(ctx context.Context, url string) (bool, error)
}

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the HTTP settings and dependencies of the server.
type Options struct {
	Port        string
	ArchiveRoot string
	Submitter   Submitter
	Store       StatusStore
	Deduper     Deduper
	// Checks are pinged by /api/health, keyed by the name reported.
	Checks   map[string]Pinger
	Gatherer prometheus.Gatherer
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	opts       Options
	router     http.Handler
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(opts Options, l *zap.Logger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		opts:   opts,
		logger: l,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", opts.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
