package server

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"photodrop/internal/anonymize"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	if s.config.IsDevelopment() {
		r.Use(middleware.NoCache)
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Error 404 handler
	r.NotFound(s.handleError404)
	r.MethodNotAllowed(s.handleError405)

	// Landing page and health check
	r.Get("/", s.handleIndex)
	r.Get("/health", s.healthHandler)

	// Uploads are the only rate limited route
	r.With(s.uploadRateLimiter()).Post("/upload", s.fileHandler.HandleUpload)

	// Everything else is looked up in the public directory
	r.Get("/*", s.handleStatic)

	return r
}

// uploadRateLimiter allows RateLimitRequests uploads per client address in
// each fixed RateLimitWindow.
func (s *Server) uploadRateLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.config.RateLimitRequests,
		s.config.RateLimitWindow,
		httprate.WithLimitCounter(newFixedWindowCounter()),
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return anonymize.ClientAddress(r), nil
		}),
		httprate.WithLimitHandler(s.handleRateLimited),
	)
}

func (s *Server) indexPath() string {
	return filepath.Join(s.config.PublicDirectory, "index.html")
}
