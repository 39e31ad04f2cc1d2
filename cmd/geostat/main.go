package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/geostat/internal/analytics"
	"github.com/TomasB/geostat/internal/counter"
	"github.com/TomasB/geostat/internal/data"
	"github.com/TomasB/geostat/internal/handler/health"
	"github.com/TomasB/geostat/internal/handler/lookup"
	"github.com/TomasB/geostat/internal/handler/stats"
)

func main() {
	// Initialize structured logging
	logLevel := getLogLevel(os.Getenv("LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("service starting", "log_level", logLevel.String())

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Set Gin mode based on log level
	if logLevel == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	// Load MaxMind MMDB
	mmdbPath := os.Getenv("MMDB_PATH")
	if mmdbPath == "" {
		slog.Error("MMDB_PATH environment variable is required")
		os.Exit(1)
	}

	resolver, err := data.NewMmdbReader(mmdbPath)
	if err != nil {
		slog.Error("failed to open MMDB", "path", mmdbPath, "error", err)
		os.Exit(1)
	}
	defer resolver.Close()

	slog.Info("MMDB loaded", "path", mmdbPath)

	// Reload the MMDB when the file changes on disk (set MMDB_WATCH=off to
	// disable, e.g. on filesystems without inotify support)
	if os.Getenv("MMDB_WATCH") != "off" {
		watcher, err := data.WatchMmdb(mmdbPath, resolver)
		if err != nil {
			slog.Error("failed to watch MMDB", "path", mmdbPath, "error", err)
			os.Exit(1)
		}
		defer watcher.Close()
	}

	// Open the analytics counter database
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "geostat.db"
	}

	counts, err := counter.Open(dbPath)
	if err != nil {
		slog.Error("failed to open counter store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer counts.Close()

	slog.Info("counter store opened", "path", dbPath)

	service := analytics.NewService(resolver, counts, logger)

	// Register health endpoints; readiness pings the counter store
	healthHandler := health.NewHandler(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return counts.Ping(ctx)
	})
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Register API endpoints
	lookupHandler := lookup.NewHandler(service)
	statsHandler := stats.NewHandler(service)
	api := router.Group("/api/v1")
	{
		api.POST("/lookup", lookupHandler.Lookup)
		api.GET("/stats", statsHandler.Stats)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("service started", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("service shutting down")

	// Graceful shutdown with 30s timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("service stopped")
}

// getLogLevel converts string log level to slog.Level
func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ginLogger creates a Gin middleware that logs using slog
func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
		}

		if len(c.Errors) > 0 {
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		} else if statusCode >= 500 {
			logger.Error("request completed", attrs...)
		} else if statusCode >= 400 {
			logger.Warn("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
	}
}
