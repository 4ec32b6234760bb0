// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the cache database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Optimizer defaults
	RiskFreeRate    float64
	FrontierSamples int
	FrontierSeed    uint64 // 0 = seed from the clock on every request

	// Market data
	CacheTTL           time.Duration
	CachePurgeSchedule string
	FetchRateLimit     float64 // Requests per second to the price source
	FetchConcurrency   int

	RequestTimeout time.Duration
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("GO_PORT", 8001),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RiskFreeRate:       getEnvAsFloat("RISK_FREE_RATE", 0.02),
		FrontierSamples:    getEnvAsInt("FRONTIER_SAMPLES", 100),
		FrontierSeed:       getEnvAsUint64("FRONTIER_SEED", 0),
		CacheTTL:           getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		CachePurgeSchedule: getEnv("CACHE_PURGE_SCHEDULE", "@every 1h"),
		FetchRateLimit:     getEnvAsFloat("FETCH_RATE_LIMIT", 5),
		FetchConcurrency:   getEnvAsInt("FETCH_CONCURRENCY", 4),
		RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CacheDBPath returns the location of the series cache database
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Validate checks that values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d", c.Port)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("RISK_FREE_RATE must be a finite number")
	}
	if c.FrontierSamples <= 0 {
		return fmt.Errorf("FRONTIER_SAMPLES must be positive, got %d", c.FrontierSamples)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.FetchRateLimit <= 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT must be positive, got %g", c.FetchRateLimit)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintVal, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
