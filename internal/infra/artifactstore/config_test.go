package artifactstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Default(t *testing.T) {
	t.Setenv("PIPELINE_ARTIFACT_ROOT", "")
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultRootPath, cfg.RootPath)
}

func TestLoadConfigFromEnv_Override(t *testing.T) {
	t.Setenv("PIPELINE_ARTIFACT_ROOT", "/var/lib/imagevault/artifacts")
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/imagevault/artifacts", cfg.RootPath)
}

func TestConfig_Validate_RejectsEmptyRoot(t *testing.T) {
	cfg := Config{RootPath: ""}
	assert.Error(t, cfg.Validate())
}
