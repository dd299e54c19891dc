package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/manifold-api/internal/config"
	"github.com/phrazzld/manifold-api/internal/ocr"
	"github.com/phrazzld/manifold-api/internal/platform/postgres"
	"github.com/phrazzld/manifold-api/internal/platform/redisq"
	"github.com/phrazzld/manifold-api/internal/queue"
	"github.com/phrazzld/manifold-api/internal/service"
	"github.com/phrazzld/manifold-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	rdb    *redis.Client

	// Stores
	manifestStore store.ManifestStore
	historyStore  store.JobHistoryStore

	// Queue adapter, used through its ports
	jobQueue queue.JobQueue

	// Services
	extractionService service.ExtractionService
	jobsService       service.JobsService
	ocrCache          *ocr.Cache
}

// newApplication creates a new application instance with all dependencies
// initialized. Core dependencies (config, logger, database) must already
// be established.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := app.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("redis connection established", "db", cfg.Redis.DB)

	// Initialize stores
	app.manifestStore = postgres.NewPostgresManifestStore(db)
	app.historyStore = postgres.NewPostgresJobHistoryStore(db)

	// Initialize the queue adapter; it also serves as JobReader and
	// QueueController.
	redisQueue := redisq.NewRedisJobQueue(
		app.rdb,
		app.historyStore,
		app.manifestStore,
		cfg.Queue,
		logger.With("component", "job_queue"),
	)
	app.jobQueue = redisQueue

	// Initialize the OCR result cache over the Redis key-value store.
	app.ocrCache = ocr.NewCache(
		redisq.NewCacheStore(app.rdb),
		app.manifestStore,
		cfg.Cache.OCRTTL,
		logger.With("component", "ocr_cache"),
	)
	app.ocrCache.SetWarmConcurrency(cfg.Scheduler.Concurrency)

	// Initialize services
	app.extractionService = service.NewExtractionService(
		app.manifestStore,
		app.jobQueue,
		logger.With("component", "extraction_service"),
	)
	app.jobsService = service.NewJobsService(
		redisQueue,
		redisQueue,
		app.historyStore,
		logger.With("component", "jobs_service"),
	)

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
