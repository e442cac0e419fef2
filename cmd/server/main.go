package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shokucho.jp/portal/internal/api"
	"shokucho.jp/portal/internal/config"
	"shokucho.jp/portal/internal/core"
	"shokucho.jp/portal/internal/dxfexport"
	"shokucho.jp/portal/internal/imaging"
	"shokucho.jp/portal/internal/logger"
	"shokucho.jp/portal/internal/ratelimit"
	"shokucho.jp/portal/internal/store"
	"shokucho.jp/portal/internal/units"
	"shokucho.jp/portal/internal/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logging
	logBuilder := logger.New().WithLevel(cfg.LogLevel).Console(!cfg.IsProduction())
	if cfg.LogFile != "" {
		logBuilder = logBuilder.FromPath(cfg.LogFile)
	}
	appLog, err := logBuilder.Make()
	if err != nil {
		return err
	}
	defer appLog.Close()
	log := appLog.Logger

	if !cfg.EnvFileLoaded {
		log.Info().Msg("no .env file found, relying on environment variables")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	unitConverter, err := units.NewConverter(units.DefaultTables())
	if err != nil {
		return fmt.Errorf("failed to load unit tables: %w", err)
	}

	validator := validation.New()
	forumService := core.NewForumService(dbStore, validator, core.ForumRules{
		MaxTags:           cfg.ForumMaxTags,
		MaxTitleLength:    cfg.ForumMaxTitleLength,
		MaxBodyLength:     cfg.ForumMaxBodyLength,
		MaxCommentLength:  cfg.ForumMaxCommentLength,
		ForbiddenTagWords: cfg.ForumForbiddenWords,
	}, log.With().Str("component", "forum").Logger())

	limiter := ratelimit.PerMinute(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer limiter.Stop()

	clientIPs, err := api.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("failed to parse TRUSTED_PROXIES: %w", err)
	}

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(
		unitConverter,
		dxfexport.NewExporter(nil, log.With().Str("component", "dxf").Logger()),
		imaging.NewConverter(cfg.ImageJPEGQuality, log.With().Str("component", "imaging").Logger()),
		forumService,
		validator,
		cfg.MaxUploadBytes(),
		log,
	)
	router := api.NewRouter(apiHandler, limiter, clientIPs, cfg.CORSAllowedOrigins)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // Image uploads can be large
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.AppEnv).Msg("starting server, press Ctrl+C to quit")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}
	log.Info().Msg("shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exiting gracefully")
	return nil
}
