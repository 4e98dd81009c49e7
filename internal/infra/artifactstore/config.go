package artifactstore

import (
	"fmt"
	"os"
)

const DefaultRootPath = "./data/artifacts"

// Config holds artifact store configuration.
type Config struct {
	// RootPath is the base directory under which thumbnails/ and cache/
	// trees are created.
	RootPath string
}

// LoadConfigFromEnv loads artifact store configuration from environment
// variables, falling back to DefaultRootPath.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{RootPath: getEnvOrDefault("PIPELINE_ARTIFACT_ROOT", DefaultRootPath)}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.RootPath == "" {
		return fmt.Errorf("artifact root path cannot be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
