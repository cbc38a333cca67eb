// Package config loads the deployment configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"licznik.app/server/internal/models"
)

const (
	// DefaultHistoryLimit bounds the recent-entries window returned to
	// clients when no explicit limit is requested.
	DefaultHistoryLimit = 50

	defaultPort              = "9091"
	defaultReconcileInterval = 10 * time.Minute
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port string

	// Access secrets. Empty means the corresponding role can never be
	// granted.
	AccessCode string
	AdminCode  string

	// Categories is the fixed enumerated set counters are kept for.
	Categories []models.Category

	// HistoryLimit caps how many recent entries a single read returns.
	HistoryLimit int

	// StorageBackend selects the persistence implementation: "postgres"
	// or "file".
	StorageBackend string
	DatabaseURL    string
	SnapshotPath   string

	// Redis snapshot cache; disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Firebase Storage media store; uploads are rejected when the bucket
	// is unset.
	FirebaseServiceAccountPath string
	FirebaseProjectID          string
	FirebaseStorageBucket      string

	// ResetClearsHistory selects the destructive reset profile: counters
	// are zeroed and the journal is cleared in the same admin action.
	ResetClearsHistory bool

	ReconcileInterval time.Duration
}

// Load reads configuration from the environment. Only malformed values are
// errors; absent optional collaborators (Redis, Firebase) simply disable the
// feature they back.
func Load() (Config, error) {
	cfg := Config{
		Port:                       getEnvOrDefault("PORT", defaultPort),
		AccessCode:                 os.Getenv("ACCESS_CODE"),
		AdminCode:                  os.Getenv("ADMIN_CODE"),
		HistoryLimit:               DefaultHistoryLimit,
		StorageBackend:             getEnvOrDefault("STORAGE_BACKEND", "postgres"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		SnapshotPath:               getEnvOrDefault("SNAPSHOT_PATH", "licznik.json"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		RedisPassword:              os.Getenv("REDIS_PASSWORD"),
		FirebaseServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		FirebaseProjectID:          os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseStorageBucket:      os.Getenv("FIREBASE_STORAGE_BUCKET"),
		ResetClearsHistory:         true,
		ReconcileInterval:          defaultReconcileInterval,
	}

	cats, err := ParseCategories(getEnvOrDefault("CATEGORIES", "lysy,pawel"))
	if err != nil {
		return Config{}, err
	}
	cfg.Categories = cats

	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid HISTORY_LIMIT %q", v)
		}
		cfg.HistoryLimit = n
	}

	switch cfg.StorageBackend {
	case "postgres", "file":
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_BACKEND %q (want postgres or file)", cfg.StorageBackend)
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB %q", v)
		}
		cfg.RedisDB = n
	}

	if v := os.Getenv("RESET_CLEARS_HISTORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RESET_CLEARS_HISTORY %q", v)
		}
		cfg.ResetClearsHistory = b
	}

	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid RECONCILE_INTERVAL %q", v)
		}
		cfg.ReconcileInterval = d
	}

	return cfg, nil
}

// ParseCategories parses a comma-separated category list, rejecting empties
// and duplicates.
func ParseCategories(s string) ([]models.Category, error) {
	parts := strings.Split(s, ",")
	seen := make(map[models.Category]bool, len(parts))
	cats := make([]models.Category, 0, len(parts))
	for _, p := range parts {
		name := models.Category(strings.TrimSpace(p))
		if name == "" {
			return nil, fmt.Errorf("empty category in %q", s)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true
		cats = append(cats, name)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("no categories configured")
	}
	return cats, nil
}

// getEnvOrDefault returns the environment variable value or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
