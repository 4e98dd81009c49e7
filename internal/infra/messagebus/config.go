package messagebus

import (
	"fmt"
	"os"
	"strconv"
)

// Config captures the recognized options of spec.md §6: batch processing,
// memory optimization, per-queue transport knobs, and cache defaults.
type Config struct {
	RedisAddr string

	MaxBatchSize        int
	BatchTimeoutSeconds int
	MaxConcurrentBatches int

	MaxMemoryUsageMB        int
	MaxConcurrentProcessing int
	MemoryPoolSize          int
	DefaultBufferSize       int

	PrefetchCount       int
	Concurrency         int
	MessageTimeoutSeconds int
	MaxImageSizeBytes     int64
	MaxZipEntrySizeBytes  int64

	CacheFormat          string
	CacheQuality         int
	ThumbnailDefaultSize int
	CacheDefaultWidth    int
	CacheDefaultHeight   int
}

func DefaultConfig() Config {
	return Config{
		RedisAddr: "localhost:6379",

		MaxBatchSize:         50,
		BatchTimeoutSeconds:  5,
		MaxConcurrentBatches: 4,

		MaxMemoryUsageMB:        4096,
		MaxConcurrentProcessing: 8,
		MemoryPoolSize:          100,
		DefaultBufferSize:       2 << 20,

		PrefetchCount:         100,
		Concurrency:           8,
		MessageTimeoutSeconds: 24 * 60 * 60,
		MaxImageSizeBytes:     500 << 20,
		MaxZipEntrySizeBytes:  20 << 30,

		CacheFormat:          "jpeg",
		CacheQuality:         85,
		ThumbnailDefaultSize: 300,
		CacheDefaultWidth:    1920,
		CacheDefaultHeight:   1080,
	}
}

// LoadConfigFromEnv overlays environment variables onto DefaultConfig.
func LoadConfigFromEnv() Config {
	c := DefaultConfig()

	c.RedisAddr = getEnvOrDefault("PIPELINE_REDIS_ADDR", c.RedisAddr)

	c.MaxBatchSize = getEnvIntOrDefault("PIPELINE_MAX_BATCH_SIZE", c.MaxBatchSize)
	c.BatchTimeoutSeconds = getEnvIntOrDefault("PIPELINE_BATCH_TIMEOUT_SECONDS", c.BatchTimeoutSeconds)
	c.MaxConcurrentBatches = getEnvIntOrDefault("PIPELINE_MAX_CONCURRENT_BATCHES", c.MaxConcurrentBatches)

	c.MaxMemoryUsageMB = getEnvIntOrDefault("PIPELINE_MAX_MEMORY_USAGE_MB", c.MaxMemoryUsageMB)
	c.MaxConcurrentProcessing = getEnvIntOrDefault("PIPELINE_MAX_CONCURRENT_PROCESSING", c.MaxConcurrentProcessing)
	c.MemoryPoolSize = getEnvIntOrDefault("PIPELINE_MEMORY_POOL_SIZE", c.MemoryPoolSize)
	c.DefaultBufferSize = getEnvIntOrDefault("PIPELINE_DEFAULT_BUFFER_SIZE", c.DefaultBufferSize)

	c.PrefetchCount = getEnvIntOrDefault("PIPELINE_PREFETCH_COUNT", c.PrefetchCount)
	c.Concurrency = getEnvIntOrDefault("PIPELINE_CONCURRENCY", c.Concurrency)
	c.MessageTimeoutSeconds = getEnvIntOrDefault("PIPELINE_MESSAGE_TIMEOUT_SECONDS", c.MessageTimeoutSeconds)
	c.MaxImageSizeBytes = getEnvInt64OrDefault("PIPELINE_MAX_IMAGE_SIZE_BYTES", c.MaxImageSizeBytes)
	c.MaxZipEntrySizeBytes = getEnvInt64OrDefault("PIPELINE_MAX_ZIP_ENTRY_SIZE_BYTES", c.MaxZipEntrySizeBytes)

	c.CacheFormat = getEnvOrDefault("PIPELINE_CACHE_FORMAT", c.CacheFormat)
	c.CacheQuality = getEnvIntOrDefault("PIPELINE_CACHE_QUALITY", c.CacheQuality)
	c.ThumbnailDefaultSize = getEnvIntOrDefault("PIPELINE_THUMBNAIL_DEFAULT_SIZE", c.ThumbnailDefaultSize)
	c.CacheDefaultWidth = getEnvIntOrDefault("PIPELINE_CACHE_DEFAULT_WIDTH", c.CacheDefaultWidth)
	c.CacheDefaultHeight = getEnvIntOrDefault("PIPELINE_CACHE_DEFAULT_HEIGHT", c.CacheDefaultHeight)

	return c
}

func (c Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("messagebus: redis address must not be empty")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("messagebus: max batch size must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("messagebus: concurrency must be positive")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64OrDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
