package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", s.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/archive", s.handleArchiveRequest)
		r.Get("/status", s.handleStatusRequest)
	})

	if s.opts.ArchiveRoot != "" {
		files := http.StripPrefix("/archives/", http.FileServer(http.Dir(s.opts.ArchiveRoot)))
		r.Get("/archives/*", files.ServeHTTP)
	}

	return r
}
