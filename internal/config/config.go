// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port   int
	DBPath string

	// Defaults seeded into backup settings on first run; thereafter the
	// database row is authoritative.
	MaxBackups              int
	AutoBackupIntervalHours int

	// MaxImportSize limits the size of uploaded backup containers, bytes.
	MaxImportSize int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                    getEnvInt("PORT", 8080),
		DBPath:                  getEnv("DB_PATH", "./data/taxonvault.db"),
		MaxBackups:              getEnvInt("MAX_BACKUPS", 10),
		AutoBackupIntervalHours: getEnvInt("AUTO_BACKUP_INTERVAL_HOURS", 24),
		MaxImportSize:           getEnvInt64("MAX_IMPORT_SIZE", 256<<20),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxBackups < 1 {
		return fmt.Errorf("MAX_BACKUPS must be at least 1, got %d", c.MaxBackups)
	}
	if c.AutoBackupIntervalHours < 1 {
		return fmt.Errorf("AUTO_BACKUP_INTERVAL_HOURS must be at least 1, got %d", c.AutoBackupIntervalHours)
	}
	if c.MaxImportSize < 1 {
		return fmt.Errorf("MAX_IMPORT_SIZE must be positive, got %d", c.MaxImportSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
