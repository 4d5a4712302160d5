package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epicollect5/epicollect5-server-sub003/internal/config"
	"github.com/epicollect5/epicollect5-server-sub003/internal/database"
	"github.com/epicollect5/epicollect5-server-sub003/internal/entry"
	"github.com/epicollect5/epicollect5-server-sub003/internal/logging"
	"github.com/epicollect5/epicollect5-server-sub003/internal/project"
	"github.com/epicollect5/epicollect5-server-sub003/internal/uniqueness"
	"github.com/epicollect5/epicollect5-server-sub003/internal/upload"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logCloser := logging.Setup(&cfg.Log)
	defer logCloser.Close()

	slog.Info("configuration loaded successfully",
		"db_driver", cfg.Database.Driver,
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"db_sslmode", cfg.Database.SSLMode,
		"log_level", cfg.Log.Level,
		"log_file", cfg.Log.File,
	)

	slog.Info("CORS configuration",
		"allowed_origins", cfg.CORS.AllowedOrigins,
		"allowed_methods", cfg.CORS.AllowedMethods,
		"allowed_headers", cfg.CORS.AllowedHeaders,
		"allow_credentials", cfg.CORS.AllowCredentials,
		"max_age", cfg.CORS.MaxAge,
	)

	slog.Info("server configuration",
		"port", cfg.Server.Port,
		"max_payload_bytes", cfg.Server.MaxPayloadBytes,
	)

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if cfg.Database.AutoMigrate {
		models := append(entry.Models(), &project.Project{})
		if err := database.Migrate(db, models...); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	entries := entry.NewStore(db)
	projects := project.NewStore(db)
	validator := upload.NewValidator(uniqueness.NewChecker(entries), entries)
	handler := upload.NewHandler(projects, validator, cfg.Server.MaxPayloadBytes)

	gin.SetMode(gin.ReleaseMode)
	router := upload.NewRouter(&cfg.CORS, handler, func() error { return database.HealthCheck(db) })

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}
}
