package messagebus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validate(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
}

func TestLoadConfigFromEnv_Override(t *testing.T) {
	t.Setenv("PIPELINE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("PIPELINE_MAX_BATCH_SIZE", "200")
	t.Setenv("PIPELINE_CACHE_QUALITY", "95")

	c := LoadConfigFromEnv()
	assert.Equal(t, "redis.internal:6380", c.RedisAddr)
	assert.Equal(t, 200, c.MaxBatchSize)
	assert.Equal(t, 95, c.CacheQuality)
	assert.Equal(t, DefaultConfig().Concurrency, c.Concurrency)
}

func TestConfig_Validate_RejectsEmptyRedisAddr(t *testing.T) {
	c := DefaultConfig()
	c.RedisAddr = ""
	assert.Error(t, c.Validate())
}

func TestConfig_Validate_RejectsNonPositiveConcurrency(t *testing.T) {
	c := DefaultConfig()
	c.Concurrency = 0
	assert.Error(t, c.Validate())
}
