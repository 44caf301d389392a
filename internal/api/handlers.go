package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/user/article-archiver/internal/domain"
	"github.com/user/article-archiver/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleArchiveRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.URL == "" {
		s.respondWithError(w, http.StatusBadRequest, "url cannot be empty")
		return
	}
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.respondWithError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}

	if !req.Force && s.opts.Deduper != nil {
		recent, err := s.opts.Deduper.IsRecentlyArchived(r.Context(), req.URL)
		if err != nil {
			s.logger.Error("failed to check redis for archived status", zap.Error(err))
		}
		if recent {
			s.respondWithError(w, http.StatusConflict, "URL has been archived recently, set force to archive again")
			return
		}
	}

	task := domain.ArchiveTask{ID: uuid.NewString(), URL: req.URL, Force: req.Force}
	if s.opts.Store != nil {
		rec := &domain.ArchiveRecord{ID: task.ID, URL: task.URL, Status: domain.StatusProcessing}
		if err := s.opts.Store.SaveRun(r.Context(), rec); err != nil {
			s.logger.Error("failed to record archive request", zap.Error(err))
		}
	}
	if err := s.opts.Submitter.Submit(task); err != nil {
		s.logger.Error("failed to submit archive task", zap.Error(err))
		s.respondWithError(w, http.StatusServiceUnavailable, "Archiver is shutting down")
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"message":    "URL accepted for archiving",
		"archive_id": task.ID,
	})
}

func (s *Server) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	urlParam := r.URL.Query().Get("url")
	if urlParam == "" {
		s.respondWithError(w, http.StatusBadRequest, "URL query parameter is required")
		return
	}

	status, err := s.opts.Store.GetArchiveStatus(r.Context(), urlParam)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "URL status not found")
			return
		}
		s.logger.Error("failed to get archive status", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve status")
		return
	}

	s.respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string, len(s.opts.Checks))
	isHealthy := true
	for name, p := range s.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			isHealthy = false
			s.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
