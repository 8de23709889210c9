package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/johnquangdev/podcast-assistant/pkg/validator"

	"github.com/johnquangdev/podcast-assistant/internal/adapter/handler"
	"github.com/johnquangdev/podcast-assistant/internal/app"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg.Server.Environment, false)
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${id} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))

	log.Println("🔧 Initializing dependencies...")
	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	log.Println("👷 Starting pipeline workers...")
	if err := a.Pipeline.StartWorkerPool(rootCtx, cfg.Pipeline.Workers); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg,
		handler.NewPipeline(a.Pipeline, a.Episodes, logger),
		handler.NewChat(a.Retrieval, logger),
		handler.NewTopic(a.Topics, logger),
		a.HealthChecks(),
	)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	// in-flight runs see cancellation and record their state before exiting
	stopWorkers()
	if err := a.Pipeline.StopWorkerPool(); err != nil {
		log.Printf("⚠️  Worker pool: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
