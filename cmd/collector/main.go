// Command collector runs the pulse telemetry ingestion service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/pulse/internal/collector/api"
	"github.com/brightpath/pulse/internal/collector/handler"
	"github.com/brightpath/pulse/internal/collector/storage"
	"github.com/brightpath/pulse/internal/config"
	"github.com/brightpath/pulse/internal/logger"

	_ "github.com/lib/pq"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path("config.yml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	buf := storage.NewEventBuffer(cfg.Service.EventBufferSize)
	writer := storage.NewEventWriter(db, buf, log, cfg.Service.FlushInterval, cfg.Service.FlushThreshold)
	writer.Start()
	defer writer.Stop()

	store := storage.NewStore(db)
	telemetry := handler.NewTelemetryHandler(store, buf, log)
	health := handler.NewHealthHandler(cfg.Service.Version, db)

	// done signals background goroutines (rate limiter) on shutdown
	done := make(chan struct{})
	defer close(done)

	rateLimitWindow := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	server := api.NewServer(cfg.Service.Port, cfg.Service.Debug, log, func(router *gin.Engine) {
		api.SetupRoutes(router, telemetry, health,
			cfg.RateLimit.MaxRequestsPerMinute, rateLimitWindow, done)
	})

	log.Info("Collector starting",
		logger.Int("port", cfg.Service.Port),
	)

	if err := server.RunWithGracefulShutdown(context.Background()); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Collector exited cleanly")
	return 0
}
