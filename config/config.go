package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read at startup. It is read-only afterwards.
type Config struct {
	Port             string
	NotionToken      string
	NotionDatabaseID string
	NotionTimeout    time.Duration
	RedisAddr        string // empty disables the journal
	RedisPassword    string
	RedisDB          int
	JournalMax       int64
}

// Load reads a .env file if present, then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             GetEnv("PORT", "3000"),
		NotionToken:      GetEnv("NOTION_TOKEN"),
		NotionDatabaseID: GetEnv("NOTION_DATABASE_ID"),
		RedisAddr:        GetEnv("REDIS_ADDR"),
		RedisPassword:    GetEnv("REDIS_PASSWORD"),
	}

	if cfg.NotionToken == "" {
		return nil, errors.New("NOTION_TOKEN is not set")
	}
	if cfg.NotionDatabaseID == "" {
		return nil, errors.New("NOTION_DATABASE_ID is not set")
	}

	var err error
	if cfg.NotionTimeout, err = time.ParseDuration(GetEnv("NOTION_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid NOTION_TIMEOUT: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(GetEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.JournalMax, err = strconv.ParseInt(GetEnv("JOURNAL_MAX", "1000"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid JOURNAL_MAX: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the variable or the first default when it is unset
func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}
