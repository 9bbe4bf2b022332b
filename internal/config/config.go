// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend selection. The store contracts are backend-agnostic; the
// sqlite backend is the default, the memory backend is a scan-and-filter
// store useful for tests and ephemeral deployments.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for databases and feed state (always absolute)
	Port         int
	LogLevel     string
	DevMode      bool
	Storage      string // "sqlite" or "memory"
	TickInterval time.Duration
	PriceFloor   string // smallest price the simulator will ever produce, as a decimal string
	FeedSeed     uint64 // 0 means non-deterministic
	Backup       BackupConfig
}

// BackupConfig holds S3-compatible backup settings. Backups are disabled
// unless a bucket is configured.
type BackupConfig struct {
	Enabled   bool
	Endpoint  string // optional custom endpoint (e.g. Cloudflare R2)
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOCKER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	port, err := strconv.Atoi(getEnv("STOCKER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid STOCKER_PORT: %w", err)
	}

	tickInterval, err := time.ParseDuration(getEnv("STOCKER_TICK_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STOCKER_TICK_INTERVAL: %w", err)
	}
	if tickInterval < time.Second {
		return nil, fmt.Errorf("STOCKER_TICK_INTERVAL must be at least 1s, got %s", tickInterval)
	}

	storage := getEnv("STOCKER_STORAGE", StorageSQLite)
	if storage != StorageSQLite && storage != StorageMemory {
		return nil, fmt.Errorf("invalid STOCKER_STORAGE %q (expected %q or %q)", storage, StorageSQLite, StorageMemory)
	}

	var feedSeed uint64
	if seedStr := getEnv("STOCKER_FEED_SEED", ""); seedStr != "" {
		feedSeed, err = strconv.ParseUint(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STOCKER_FEED_SEED: %w", err)
		}
	}

	backupBucket := getEnv("STOCKER_BACKUP_BUCKET", "")

	return &Config{
		DataDir:      absDataDir,
		Port:         port,
		LogLevel:     getEnv("STOCKER_LOG_LEVEL", "info"),
		DevMode:      getEnv("STOCKER_DEV_MODE", "false") == "true",
		Storage:      storage,
		TickInterval: tickInterval,
		PriceFloor:   getEnv("STOCKER_PRICE_FLOOR", "0.01"),
		FeedSeed:     feedSeed,
		Backup: BackupConfig{
			Enabled:   backupBucket != "",
			Endpoint:  getEnv("STOCKER_BACKUP_ENDPOINT", ""),
			Region:    getEnv("STOCKER_BACKUP_REGION", "auto"),
			Bucket:    backupBucket,
			AccessKey: getEnv("STOCKER_BACKUP_ACCESS_KEY", ""),
			SecretKey: getEnv("STOCKER_BACKUP_SECRET_KEY", ""),
			Prefix:    getEnv("STOCKER_BACKUP_PREFIX", "stocker-backups"),
		},
	}, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
