// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// Config holds all runtime configuration for the search service.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	CacheBackend string // "redis" or "memory"

	IndexPath       string
	SearchTimeout   time.Duration
	SearchRetries   int
	ReindexSchedule string // cron spec; empty disables the periodic rebuild
	ReprobeSchedule string

	FeaturedTTL    time.Duration
	ReferenceTTL   time.Duration
	TrendingWindow time.Duration

	IndexEventsChannel string

	LogLevel  string
	LogFormat string
}

// Load reads environment variables and returns a validated Config.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")

	backend := os.Getenv("CACHE_BACKEND")
	if backend == "" {
		backend = CacheMemory
		if redisURL != "" {
			backend = CacheRedis
		}
	}
	switch backend {
	case CacheMemory:
	case CacheRedis:
		if redisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheRedis, CacheMemory, backend)
	}

	retries := 3
	if s := os.Getenv("SEARCH_MAX_RETRIES"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SEARCH_MAX_RETRIES must be a positive integer, got %q", s)
		}
		retries = v
	}

	timeout, err := duration("SEARCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	featuredTTL, err := duration("FEATURED_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	referenceTTL, err := duration("REFERENCE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	window, err := duration("TRENDING_WINDOW", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	reindex, ok := os.LookupEnv("REINDEX_SCHEDULE")
	if !ok {
		reindex = "@every 6h"
	}

	return &Config{
		Port:               getenv("SEARCH_PORT", "8083"),
		DatabaseURL:        dbURL,
		RedisURL:           redisURL,
		CacheBackend:       backend,
		IndexPath:          getenv("SEARCH_INDEX_PATH", "./data/jobs_index"),
		SearchTimeout:      timeout,
		SearchRetries:      retries,
		ReindexSchedule:    reindex,
		ReprobeSchedule:    getenv("REPROBE_SCHEDULE", "@every 1m"),
		FeaturedTTL:        featuredTTL,
		ReferenceTTL:       referenceTTL,
		TrendingWindow:     window,
		IndexEventsChannel: getenv("INDEX_EVENTS_CHANNEL", "EVENT_JOB_CHANGED"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "json"),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return d, nil
}
