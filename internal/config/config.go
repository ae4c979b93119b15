// Package config loads the application configuration: defaults, overlaid by
// an optional YAML file, overlaid by MELAKNOWMA_* environment variables. The
// loaded Config is passed explicitly to every component, never held as
// ambient global state, so tests can construct whatever they need.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"melaknowma/internal/classify"
	"melaknowma/internal/scoring"
	"melaknowma/internal/types"
)

// Config is the full application configuration.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`

	Store       StoreConfig       `yaml:"store"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Crowd       CrowdConfig       `yaml:"crowd"`

	// Weights override the default scoring policy per category.
	Weights *scoring.Weights `yaml:"weights,omitempty"`
	// Thresholds override the default classification policy per category.
	Thresholds map[types.Category]float64 `yaml:"thresholds,omitempty"`
}

// StoreConfig selects and tunes the record store backend.
type StoreConfig struct {
	// Backend is "redis" or "memory" (dev only).
	Backend  string        `yaml:"backend"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockWait time.Duration `yaml:"lock_wait"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// ObjectStoreConfig selects and tunes the blob backend.
type ObjectStoreConfig struct {
	// Backend is "s3" or "fs".
	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

// CrowdConfig tunes the crowdsourcing provider client.
type CrowdConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Store: StoreConfig{
			Backend:  "redis",
			Addr:     "localhost:6379",
			LockWait: 2 * time.Second,
			LockTTL:  5 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Backend: "fs",
			Dir:     "data/objects",
			BaseURL: "http://localhost:8080/objects",
		},
		Crowd: CrowdConfig{
			BaseURL:           "https://api.crowdflower.com/v1",
			RequestsPerSecond: 5,
		},
	}
}

// Load reads the configuration. An empty path means defaults + environment
// only; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot be wired.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.ObjectStore.Backend {
	case "s3":
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("s3 object store requires a bucket")
		}
	case "fs":
		if c.ObjectStore.Dir == "" {
			return fmt.Errorf("fs object store requires a dir")
		}
	default:
		return fmt.Errorf("unknown object store backend %q", c.ObjectStore.Backend)
	}
	if c.Weights != nil {
		for category := range c.Weights.No {
			if !category.IsValid() {
				return fmt.Errorf("weight for unknown category %q", category)
			}
		}
		for category := range c.Weights.Yes {
			if !category.IsValid() {
				return fmt.Errorf("weight for unknown category %q", category)
			}
		}
	}
	for category := range c.Thresholds {
		if !category.IsValid() {
			return fmt.Errorf("threshold for unknown category %q", category)
		}
	}
	return nil
}

// ScoringWeights resolves the effective weight tables: configured overrides
// on top of the default policy.
func (c *Config) ScoringWeights() scoring.Weights {
	weights := scoring.DefaultWeights()
	if c.Weights == nil {
		return weights
	}
	for category, w := range c.Weights.No {
		weights.No[category] = w
	}
	for category, w := range c.Weights.Yes {
		weights.Yes[category] = w
	}
	return weights
}

// ClassifyPolicy resolves the effective classification policy.
func (c *Config) ClassifyPolicy() classify.Policy {
	policy := classify.DefaultPolicy()
	for category, threshold := range c.Thresholds {
		policy.MinExclusive[category] = threshold
	}
	return policy
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MELAKNOWMA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MELAKNOWMA_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("MELAKNOWMA_REDIS_ADDR"); v != "" {
		cfg.Store.Addr = v
	}
	if v := os.Getenv("MELAKNOWMA_REDIS_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("MELAKNOWMA_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.DB = db
		}
	}
	if v := os.Getenv("MELAKNOWMA_S3_BUCKET"); v != "" {
		cfg.ObjectStore.Backend = "s3"
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("MELAKNOWMA_S3_REGION"); v != "" {
		cfg.ObjectStore.Region = v
	}
	if v := os.Getenv("MELAKNOWMA_CROWD_BASE_URL"); v != "" {
		cfg.Crowd.BaseURL = v
	}
	if v := os.Getenv("MELAKNOWMA_CROWD_API_KEY"); v != "" {
		cfg.Crowd.APIKey = v
	}
}
