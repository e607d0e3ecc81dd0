package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"resumatch/internal/api/routes"
	"resumatch/internal/config"
	"resumatch/internal/extractor"
	"resumatch/internal/llm"
	"resumatch/internal/logging"
	"resumatch/internal/pipeline"
	"resumatch/internal/remote"
	"resumatch/internal/store"
	"resumatch/internal/workers"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger := logging.GetGlobalLogger()
	logger.Info("Starting Resumatch engine", map[string]interface{}{
		"db_path": cfg.Store.Path,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		logger.Fatal("Failed to create data directory", map[string]interface{}{"error": err.Error()})
	}
	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		logger.Fatal("Failed to create uploads directory", map[string]interface{}{"error": err.Error()})
	}

	// Remote sync: in read-only deployments pull the latest database before
	// opening it.
	syncer := remote.NewSyncer(cfg, cfg.Store.Path)
	if syncer.Configured() && cfg.Remote.ReadOnly {
		pullCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := syncer.Pull(pullCtx); err != nil {
			logger.Warn("Initial pull from remote failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		cancel()
	}

	// Open the durable store
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to open store", map[string]interface{}{"error": err.Error()})
	}
	defer st.Close()

	// Initialize LLM manager
	llmManager := llm.NewManager(cfg)
	if err := llmManager.Start(); err != nil {
		logger.Fatal("Failed to start LLM manager", map[string]interface{}{"error": err.Error()})
	}

	// Pipeline wiring
	ex := extractor.NewExtractor(cfg.Uploads.Dir)
	scorer := pipeline.NewScorer(st, llmManager)
	ingester := pipeline.NewIngester(st, llmManager, ex)
	coordinator := pipeline.NewCoordinator(st)

	// Worker pool
	pool := workers.NewPool(cfg, st, scorer, ingester, coordinator)
	if err := pool.Start(); err != nil {
		logger.Fatal("Failed to start worker pool", map[string]interface{}{"error": err.Error()})
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Setup routes
	routes.SetupRoutes(e, cfg, st, ex, llmManager, pool, syncer)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("Stopping HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Stopping worker pool...")
		if err := pool.Stop(); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Stopping LLM manager...")
		if err := llmManager.Stop(); err != nil {
			logger.Error("Error stopping LLM manager", map[string]interface{}{"error": err.Error()})
		}

		if err := st.Close(); err != nil {
			logger.Error("Error closing store", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", map[string]interface{}{"address": address})

	if err := e.Start(address); err != nil {
		logger.Info("Server stopped", map[string]interface{}{"reason": err.Error()})
	}
}
