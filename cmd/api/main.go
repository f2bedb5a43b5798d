package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"photodrop/internal/config"
	"photodrop/internal/logger"
	"photodrop/internal/metalog"
	"photodrop/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Photodrop %s\n", formatVersionInfo())
			return
		case "records":
			if err := runRecords(os.Stdout, os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "records: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	// Initialize logger first
	env := os.Getenv("APP_ENV")
	logger.Init(env)

	log.Info().
		Str("environment", env).
		Str("log_level", zerolog.GlobalLevel().String()).
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("Starting Photodrop")

	// Create a base context for the application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}

	// Update logger with correct environment
	logger.Init(cfg.Env)
	cfg.Log()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating server")
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing upload storage")
		}
	}()

	// Start HTTP server
	httpServer, err := srv.Start()
	if err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}

	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-shutdown
		log.Info().Msg("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		httpServer.SetKeepAlivesEnabled(false)

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	log.Info().
		Str("addr", httpServer.Addr).
		Msg("Server is ready to handle requests")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server error")
		return
	}

	// Wait until in-flight uploads have finished before closing the log
	<-done
	log.Info().Msg("Server shutdown completed")
}

// runRecords prints the metadata log at args[0], or at the configured
// location when no path is given.
func runRecords(out io.Writer, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		cfg, err := config.NewConfig()
		if err != nil {
			return err
		}
		path = cfg.MetadataLogPath()
	}

	records, err := metalog.ReadFile(path)
	if err != nil {
		return err
	}
	printRecords(out, records, time.Now())
	return nil
}

func printRecords(out io.Writer, records []metalog.Record, now time.Time) {
	for _, rec := range records {
		when := rec.Time
		if t, err := time.Parse(metalog.TimeFormat, rec.Time); err == nil {
			when = fmt.Sprintf("%s (%s)", rec.Time, humanize.RelTime(t, now, "ago", "from now"))
		}
		fmt.Fprintf(out, "%s  %s  %s", when, rec.IPHash, rec.Filename)
		if rec.Note != "" {
			fmt.Fprintf(out, "  %q", rec.Note)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%s\n", english.Plural(len(records), "record", "records"))
}

func formatVersionInfo() string {
	return fmt.Sprintf(`Version: %s
Commit: %s
Built: %s`, version, commit, date)
}
