// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool
	EvalCron string // Cron expression for scheduled evaluation cycles
	Backup   *BackupConfig
}

// BackupConfig holds cloud backup configuration for S3-compatible storage
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // Custom endpoint (e.g. Cloudflare R2); empty for AWS S3
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // Backups older than this are pruned after upload
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. ROTOR_DATA_DIR environment variable
	// 2. ./data relative to the working directory
	// Always resolved to an absolute path and created if missing.
	dataDir := getEnv("ROTOR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("ROTOR_PORT", 8010),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		// Weekday evenings after European close; evaluation is cheap enough
		// that a missed run simply waits for the next trigger.
		EvalCron: getEnv("ROTOR_EVAL_CRON", "0 18 * * 1-5"),
		Backup:   loadBackupConfig(),
	}

	return cfg, nil
}

// loadBackupConfig reads backup settings; backup is disabled unless a bucket
// and credentials are supplied.
func loadBackupConfig() *BackupConfig {
	cfg := &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		cfg.Enabled = false
	}

	return cfg
}

// getEnv retrieves an environment variable value, returning a fallback if
// the variable is not set or is empty
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
