package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ajharbinger/riskscore-preview/internal/api"
	"github.com/ajharbinger/riskscore-preview/internal/database"
	"github.com/ajharbinger/riskscore-preview/internal/logger"
	"github.com/ajharbinger/riskscore-preview/internal/middleware"
	"github.com/ajharbinger/riskscore-preview/internal/services"
	"github.com/ajharbinger/riskscore-preview/pkg/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	// Initialize configuration
	cfg := config.New()

	log := logger.New(logger.Options{
		Level:     cfg.LogLevel,
		Console:   cfg.IsDevelopment(),
		Component: "server",
	})
	if envErr != nil {
		log.Debug("No .env file found")
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required", nil)
	}

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to run migrations", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", err)
	}
	defer db.Close()

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.GetTrustedProxies()); err != nil {
		log.Fatal("Invalid TRUSTED_PROXIES", err)
	}

	// Add security middleware
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(log.With("component", "http")))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(middleware.InputValidationMiddleware(cfg.MaxRequestSize))

	// Add rate limiting in production
	if cfg.EnableRateLimit {
		r.Use(middleware.RateLimitingMiddleware())
	}

	// Add recovery middleware
	r.Use(gin.Recovery())

	// Setup API routes
	svcs := services.NewServices(db.DB, cfg, log)
	if err := api.SetupRoutes(r, api.Dependencies{
		Services: svcs,
		Health:   db,
		Config:   cfg,
		Logger:   log,
	}); err != nil {
		log.Fatal("Failed to setup API routes", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", err)
	}
}
