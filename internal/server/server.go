package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	"photodrop/internal/config"
	"photodrop/internal/metalog"
	"photodrop/internal/storage"
	"photodrop/internal/uploader"
)

// Server represents the HTTP server and its dependencies
type Server struct {
	config      *config.Config
	provider    storage.Provider
	records     *metalog.Logger
	fileHandler *uploader.Handler
}

// NewServer creates a new server instance. The storage provider and the
// metadata log live as long as the server; release them with Close.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	provider, err := storage.NewProvider(ctx, cfg.Storage.ProviderConfig(cfg.UploadDirectory))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	records, err := metalog.Open(cfg.MetadataLogPath())
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("initializing metadata log: %w", err)
	}

	writer := storage.NewWriter(provider, cfg.UploadMaxSize)
	fileService := uploader.NewService(writer, records)

	return &Server{
		config:      cfg,
		provider:    provider,
		records:     records,
		fileHandler: uploader.NewHandler(fileService),
	}, nil
}

// Start builds the HTTP server
func (s *Server) Start() (*http.Server, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      30 * time.Second,
	}

	log.Info().
		Int("port", s.config.Port).
		Str("env", s.config.Env).
		Msg("starting server")

	return srv, nil
}

// Close releases the metadata log and the storage provider
func (s *Server) Close() error {
	return errors.Join(s.records.Close(), s.provider.Close())
}

// sendJSON sends a JSON response with consistent formatting
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("error encoding JSON response")
	}
}
