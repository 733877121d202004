// Package server implements the reliability map API: a chi router serving
// mock or stored payloads behind API-key auth, with an optional MongoDB
// snapshot store and Redis response cache.
package server

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/lattelab/reliamap/pkg/errors"
)

// Config holds server settings. Values resolve in order: defaults, TOML
// config file, environment (RELIAMAP_* variables, optionally from .env).
type Config struct {
	Addr     string `toml:"addr"`
	APIKey   string `toml:"api_key"`
	MockMode bool   `toml:"mock_mode"`

	// Snapshot store. Empty MongoURI selects the in-memory store.
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`

	// Response cache. Empty RedisAddr disables Redis and uses no cache.
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// Request handling
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		MockMode:       true,
		MongoDatabase:  "reliamap",
		RequestTimeout: 30 * time.Second,
	}
}

// LoadConfig resolves configuration from an optional TOML file plus the
// environment. A missing .env file is not an error; a named config file
// that fails to parse is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RELIAMAP_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("RELIAMAP_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("RELIAMAP_MOCK_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.MockMode = b
		}
	}
	if v := os.Getenv("RELIAMAP_MONGO_URI"); v != "" {
		c.MongoURI = v
	}
	if v := os.Getenv("RELIAMAP_MONGO_DATABASE"); v != "" {
		c.MongoDatabase = v
	}
	if v := os.Getenv("RELIAMAP_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("RELIAMAP_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("RELIAMAP_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
}
