package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPipelineEnv() {
	for _, key := range []string{
		"PIPELINE_DATABASE_URL", "PIPELINE_REDIS_ADDR", "PIPELINE_ARTIFACT_ROOT",
		"PIPELINE_HEALTH_ADDR", "PIPELINE_MAX_BATCH_SIZE", "PIPELINE_BATCH_TIMEOUT_SECONDS",
		"PIPELINE_MAX_CONCURRENT_BATCHES", "PIPELINE_MAX_MEMORY_USAGE_MB",
		"PIPELINE_MAX_CONCURRENT_PROCESSING", "PIPELINE_MEMORY_POOL_SIZE",
		"PIPELINE_DEFAULT_BUFFER_SIZE_KB", "PIPELINE_MESSAGE_TIMEOUT",
		"PIPELINE_MAX_IMAGE_SIZE_BYTES", "PIPELINE_MAX_ZIP_ENTRY_BYTES",
		"PIPELINE_CACHE_FORMAT", "PIPELINE_CACHE_QUALITY", "PIPELINE_CACHE_WIDTH",
		"PIPELINE_CACHE_HEIGHT", "PIPELINE_THUMBNAIL_WIDTH", "PIPELINE_THUMBNAIL_HEIGHT",
		"PIPELINE_JOB_MONITOR_INTERVAL", "PIPELINE_JOB_STALL_THRESHOLD",
		"PIPELINE_DLQ_HARD_CAP", "PIPELINE_DLQ_IDLE_WAIT",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultsWhenNoEnvVarsSet(t *testing.T) {
	clearPipelineEnv()
	os.Setenv("PIPELINE_DATABASE_URL", "postgres://localhost/pipeline")
	defer clearPipelineEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "./data/artifacts", cfg.ArtifactRoot)
	assert.Equal(t, ":8081", cfg.HealthAddr)
	assert.Equal(t, 50, cfg.BatchProcessing.MaxBatchSize)
	assert.Equal(t, 4, cfg.BatchProcessing.MaxConcurrentBatches)
	assert.Equal(t, 4096, cfg.Memory.MaxMemoryUsageMB)
	assert.Equal(t, "jpeg", cfg.Cache.Format)
	assert.Equal(t, 85, cfg.Cache.Quality)
	assert.Equal(t, 300, cfg.Thumbnail.Width)
	assert.Equal(t, 5*time.Second, cfg.JobMonitorInterval)
	assert.Equal(t, 30*time.Second, cfg.JobStallThreshold)
	assert.Equal(t, 30*time.Minute, cfg.DLQRecoveryHardCap)
	assert.Equal(t, 10*time.Second, cfg.DLQRecoveryIdleWait)
}

func TestLoad_ReadsFromEnvironment(t *testing.T) {
	clearPipelineEnv()
	defer clearPipelineEnv()

	os.Setenv("PIPELINE_DATABASE_URL", "postgres://custom/db")
	os.Setenv("PIPELINE_ARTIFACT_ROOT", "/data/artifacts")
	os.Setenv("PIPELINE_MAX_BATCH_SIZE", "100")
	os.Setenv("PIPELINE_CACHE_QUALITY", "90")
	os.Setenv("PIPELINE_JOB_MONITOR_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://custom/db", cfg.DatabaseURL)
	assert.Equal(t, "/data/artifacts", cfg.ArtifactRoot)
	assert.Equal(t, 100, cfg.BatchProcessing.MaxBatchSize)
	assert.Equal(t, 90, cfg.Cache.Quality)
	assert.Equal(t, 10*time.Second, cfg.JobMonitorInterval)
}

func TestLoad_FailsValidationWithoutDatabaseURL(t *testing.T) {
	clearPipelineEnv()
	defer clearPipelineEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_DATABASE_URL")
}

func TestValidate_RejectsOutOfRangeCacheQuality(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/pipeline",
		ArtifactRoot:    "./data",
		BatchProcessing: BatchProcessingConfig{MaxBatchSize: 1},
		Memory:          MemoryConfig{MaxMemoryUsageMB: 1},
		Cache:           CacheConfig{Quality: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_CACHE_QUALITY")
}

func TestValidate_RejectsNonPositiveBatchSize(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/pipeline",
		ArtifactRoot:    "./data",
		BatchProcessing: BatchProcessingConfig{MaxBatchSize: 0},
		Memory:          MemoryConfig{MaxMemoryUsageMB: 1},
		Cache:           CacheConfig{Quality: 85},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPELINE_MAX_BATCH_SIZE")
}
