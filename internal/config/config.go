package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	APIURL       string
	Token        string
	Repository   string
	DataDir      string
	DBPath       string
	PollInterval time.Duration
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("RUNWATCH_DATA_DIR", filepath.Join(homeDir, ".runwatch"))

	c := &Config{
		APIURL:       getEnv("RUNWATCH_API_URL", "http://localhost:8000"),
		Token:        os.Getenv("RUNWATCH_TOKEN"),
		Repository:   os.Getenv("RUNWATCH_REPO"),
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "runwatch.db"),
		PollInterval: 3 * time.Second,
	}

	if v := os.Getenv("RUNWATCH_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RUNWATCH_POLL_INTERVAL %q", v)
		}
		c.PollInterval = d
	}

	return c, nil
}

func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
