package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/zhfeed/hnzh/internal/api"
	"github.com/zhfeed/hnzh/internal/archive"
	"github.com/zhfeed/hnzh/internal/cache"
	"github.com/zhfeed/hnzh/internal/config"
	"github.com/zhfeed/hnzh/internal/hn"
	"github.com/zhfeed/hnzh/internal/ingest"
	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/middleware"
	"github.com/zhfeed/hnzh/internal/store"
	"github.com/zhfeed/hnzh/internal/translate"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: "stdout",
		Pretty: !cfg.IsProduction(),
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting application...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect to Postgres and bootstrap the schema
	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMaxIdle)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		log.Info().Msg("Closing database pool...")
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database pool")
		}
	}()

	// Page cache: Redis when reachable, in-memory fallback otherwise
	var pageCache cache.PageCache
	pageCache, err = cache.NewRedisCache(cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory page cache")
		pageCache = cache.NewMockCache()
	}
	defer func() {
		if err := pageCache.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing page cache")
		}
	}()

	// Ingestion pipeline collaborators
	fetcher := hn.NewClient(cfg.HNBaseURL, cfg.HNTimeout)
	translator := translate.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITimeout)
	runner := ingest.NewRunner(fetcher, translator, db, cfg.BatchSize)

	// Optional R2 run-snapshot archive
	var archiver api.Archiver
	if cfg.ArchiveEnabled() {
		r2, err := archive.NewR2Archiver(ctx, cfg.R2Endpoint, cfg.R2AccessKey, cfg.R2SecretKey, cfg.R2Bucket)
		if err != nil {
			log.Warn().Err(err).Msg("R2 archive disabled")
		} else {
			archiver = r2
		}
	}

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// Setup API routes
	handlers := api.NewHandlers(cfg, db, runner, pageCache, archiver)
	api.SetupRoutes(app, handlers, cfg)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
