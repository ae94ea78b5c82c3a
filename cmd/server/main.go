package main

import (
	"fmt"
	"os"

	"github.com/usradm-dev/usradm/internal/cli/auth"
	"github.com/usradm-dev/usradm/internal/cli/client"
	cliconfig "github.com/usradm-dev/usradm/internal/cli/config"
	"github.com/usradm-dev/usradm/internal/config"
	"github.com/usradm-dev/usradm/internal/console"
	"github.com/usradm-dev/usradm/internal/logger"
	"github.com/usradm-dev/usradm/internal/session"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format, nil)
	log := logger.GetLogger()

	if cfg.API.URL == "" {
		log.Fatal().Msg("USRADM_API_URL is required")
	}

	// Share the session namespace with the CLI so a login in either is seen
	// by both
	server := cliconfig.Server{URL: cfg.API.URL}
	store, err := session.Open(session.Options{
		Backend:   cfg.Session.Backend,
		Namespace: server.Namespace(),
		Dir:       cfg.Session.Dir,
		Logger:    log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}

	apiClient := client.New(cfg.API.URL, log)
	authService := auth.NewService(apiClient, store, log)

	// Create console
	srv, err := console.New(cfg, authService, apiClient, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create console")
	}

	log.Info().Str("version", version).Str("api", cfg.API.URL).Msg("Starting usradm console...")

	// Start HTTP server (this blocks)
	err = srv.Start()
	if closeErr := session.Close(store); closeErr != nil {
		log.Error().Err(closeErr).Msg("Failed to close session store")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Console failed to start")
	}
}
