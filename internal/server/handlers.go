package server

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"photodrop/internal/uploader"
)

// Page Handlers
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !isFile(s.indexPath()) {
		s.handleError404(w, r)
		return
	}
	http.ServeFile(w, r, s.indexPath())
}

// handleStatic serves files from the public directory. Directories are
// only served when they contain an index.html; nothing is ever listed.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	target := filepath.Join(s.config.PublicDirectory, filepath.FromSlash(name))

	info, err := os.Stat(target)
	if err != nil {
		s.handleError404(w, r)
		return
	}
	if info.IsDir() {
		target = filepath.Join(target, "index.html")
		if !isFile(target) {
			s.handleError404(w, r)
			return
		}
	}

	http.ServeFile(w, r, target)
}

// API Handlers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.provider.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health check failed")
		s.sendJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "down"})
		return
	}
	s.sendJSON(w, http.StatusOK, HealthResponse{Status: "up"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.Warn().Str("path", r.URL.Path).Msg("rate limit exceeded")
	if w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.config.RateLimitWindow.Seconds())))
	}
	s.sendJSON(w, http.StatusTooManyRequests, uploader.ErrorResponse{Error: "too many requests"})
}

// Error Handlers
func (s *Server) handleError404(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusNotFound, uploader.ErrorResponse{Error: "not found"})
}

func (s *Server) handleError405(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusMethodNotAllowed, uploader.ErrorResponse{Error: "method not allowed"})
}

func isFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}
