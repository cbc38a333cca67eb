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

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"licznik.app/server/internal/cache"
	"licznik.app/server/internal/config"
	"licznik.app/server/internal/handlers"
	"licznik.app/server/internal/journal"
	"licznik.app/server/internal/media"
	"licznik.app/server/internal/storage"
	"licznik.app/server/internal/tally"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("Invalid configuration", "error", err)
	}
	if cfg.AccessCode == "" && cfg.AdminCode == "" {
		logger.Warn("No access codes configured, every request will be rejected")
	}

	ctx := context.Background()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatalw("Failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
	}
	defer store.Close()

	mediaStore, err := newMediaStore(ctx, cfg)
	if err != nil {
		logger.Fatalw("Failed to initialize media store", "error", err)
	}

	snapshot := newSnapshotCache(ctx, cfg, logger)

	engine := tally.NewEngine(store, cfg.Categories, logger)
	j := journal.New(store, engine, mediaStore, logger, journal.Options{
		HistoryLimit:     cfg.HistoryLimit,
		DestructiveReset: cfg.ResetClearsHistory,
	})

	// Repair any drift a previous crash left between the counters and
	// the journal, then keep checking on a schedule. The counters-only
	// reset profile keeps history across resets, so its counters cannot
	// be recomputed from the journal and repair stays off.
	c := cron.New(cron.WithLocation(time.UTC))
	if cfg.ResetClearsHistory {
		if err := engine.Reconcile(ctx); err != nil {
			logger.Errorw("Startup reconciliation failed", "error", err)
		}
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.ReconcileInterval), func() {
			rctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := engine.Reconcile(rctx); err != nil {
				logger.Errorw("Scheduled reconciliation failed", "error", err)
			}
		}); err != nil {
			logger.Fatalw("Failed to schedule reconciliation", "error", err)
		}
	} else {
		engine.DisableRepair()
	}
	c.Start()
	defer c.Stop()

	handler := handlers.New(j, engine, mediaStore, snapshot, logger)
	router := handlers.NewRouter(handler, cfg.AccessCode, cfg.AdminCode, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("Server starting", "port", cfg.Port, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalw("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func newStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "file":
		return storage.NewFileStore(cfg.SnapshotPath, cfg.Categories)
	default:
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.Categories)
	}
}

func newMediaStore(ctx context.Context, cfg config.Config) (media.Store, error) {
	if cfg.FirebaseStorageBucket == "" {
		return media.Disabled{}, nil
	}

	fbConfig := &firebase.Config{
		ProjectID:     cfg.FirebaseProjectID,
		StorageBucket: cfg.FirebaseStorageBucket,
	}
	var app *firebase.App
	var err error
	if cfg.FirebaseServiceAccountPath != "" {
		app, err = firebase.NewApp(ctx, fbConfig, option.WithCredentialsFile(cfg.FirebaseServiceAccountPath))
	} else {
		// Default credentials, useful for Google Cloud deployment.
		app, err = firebase.NewApp(ctx, fbConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	return media.NewFirebaseStore(ctx, app, cfg.FirebaseStorageBucket)
}

func newSnapshotCache(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) cache.Snapshot {
	if cfg.RedisAddr == "" {
		return cache.Disabled{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("Redis unreachable, snapshot cache disabled", "error", err)
		client.Close()
		return cache.Disabled{}
	}

	return cache.NewRedis(client, logger)
}
