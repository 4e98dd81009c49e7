// Package config loads pipeline configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the pipeline reads at startup.
type Config struct {
	DatabaseURL string
	RedisAddr   string

	ArtifactRoot string

	BatchProcessing BatchProcessingConfig
	Memory          MemoryConfig
	Queue           QueueConfig
	Cache           CacheConfig
	Thumbnail       ThumbnailConfig

	JobMonitorInterval  time.Duration
	JobStallThreshold   time.Duration
	DLQRecoveryHardCap  time.Duration
	DLQRecoveryIdleWait time.Duration

	HealthAddr string
}

// BatchProcessingConfig controls the batch generator's bucketing behavior (spec §6).
type BatchProcessingConfig struct {
	MaxBatchSize         int
	BatchTimeoutSeconds  int
	MaxConcurrentBatches int
}

// MemoryConfig controls the batch generator's memory pool (spec §6).
type MemoryConfig struct {
	MaxMemoryUsageMB     int
	MaxConcurrentProcessing int
	MemoryPoolSize       int
	DefaultBufferSizeKB  int
}

// QueueConfig controls message-bus limits (spec §6).
type QueueConfig struct {
	MessageTimeout     time.Duration
	MaxImageSizeBytes  int64
	MaxZipEntryBytes   int64
}

// CacheConfig controls cache-variant generation defaults (spec §6).
type CacheConfig struct {
	Format  string
	Quality int
	Width   int
	Height  int
}

// ThumbnailConfig controls thumbnail generation defaults (spec §6).
type ThumbnailConfig struct {
	Width  int
	Height int
}

// Load reads configuration from the environment, applying the defaults
// named throughout spec.md §6.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getEnv("PIPELINE_DATABASE_URL", ""),
		RedisAddr:    getEnv("PIPELINE_REDIS_ADDR", "localhost:6379"),
		ArtifactRoot: getEnv("PIPELINE_ARTIFACT_ROOT", "./data/artifacts"),
		HealthAddr:   getEnv("PIPELINE_HEALTH_ADDR", ":8081"),

		BatchProcessing: BatchProcessingConfig{
			MaxBatchSize:         getEnvInt("PIPELINE_MAX_BATCH_SIZE", 50),
			BatchTimeoutSeconds:  getEnvInt("PIPELINE_BATCH_TIMEOUT_SECONDS", 5),
			MaxConcurrentBatches: getEnvInt("PIPELINE_MAX_CONCURRENT_BATCHES", 4),
		},
		Memory: MemoryConfig{
			MaxMemoryUsageMB:        getEnvInt("PIPELINE_MAX_MEMORY_USAGE_MB", 4096),
			MaxConcurrentProcessing: getEnvInt("PIPELINE_MAX_CONCURRENT_PROCESSING", 8),
			MemoryPoolSize:          getEnvInt("PIPELINE_MEMORY_POOL_SIZE", 100),
			DefaultBufferSizeKB:     getEnvInt("PIPELINE_DEFAULT_BUFFER_SIZE_KB", 2048),
		},
		Queue: QueueConfig{
			MessageTimeout:    getEnvDuration("PIPELINE_MESSAGE_TIMEOUT", 24*time.Hour),
			MaxImageSizeBytes: getEnvInt64("PIPELINE_MAX_IMAGE_SIZE_BYTES", 500*1024*1024),
			MaxZipEntryBytes:  getEnvInt64("PIPELINE_MAX_ZIP_ENTRY_BYTES", 20*1024*1024*1024),
		},
		Cache: CacheConfig{
			Format:  getEnv("PIPELINE_CACHE_FORMAT", "jpeg"),
			Quality: getEnvInt("PIPELINE_CACHE_QUALITY", 85),
			Width:   getEnvInt("PIPELINE_CACHE_WIDTH", 1920),
			Height:  getEnvInt("PIPELINE_CACHE_HEIGHT", 1080),
		},
		Thumbnail: ThumbnailConfig{
			Width:  getEnvInt("PIPELINE_THUMBNAIL_WIDTH", 300),
			Height: getEnvInt("PIPELINE_THUMBNAIL_HEIGHT", 300),
		},

		JobMonitorInterval:  getEnvDuration("PIPELINE_JOB_MONITOR_INTERVAL", 5*time.Second),
		JobStallThreshold:   getEnvDuration("PIPELINE_JOB_STALL_THRESHOLD", 30*time.Second),
		DLQRecoveryHardCap:  getEnvDuration("PIPELINE_DLQ_HARD_CAP", 30*time.Minute),
		DLQRecoveryIdleWait: getEnvDuration("PIPELINE_DLQ_IDLE_WAIT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("PIPELINE_DATABASE_URL is required")
	}
	if c.ArtifactRoot == "" {
		return fmt.Errorf("PIPELINE_ARTIFACT_ROOT is required")
	}
	if c.BatchProcessing.MaxBatchSize <= 0 {
		return fmt.Errorf("PIPELINE_MAX_BATCH_SIZE must be positive")
	}
	if c.Memory.MaxMemoryUsageMB <= 0 {
		return fmt.Errorf("PIPELINE_MAX_MEMORY_USAGE_MB must be positive")
	}
	if c.Cache.Quality < 1 || c.Cache.Quality > 100 {
		return fmt.Errorf("PIPELINE_CACHE_QUALITY must be between 1 and 100")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
