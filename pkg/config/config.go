package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pario-ai/promptlab/pkg/logging"
	"github.com/pario-ai/promptlab/pkg/models"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all promptlab configuration.
type Config struct {
	DBPath     string           `yaml:"db_path"`
	Backend    string           `yaml:"backend"`
	Log        logging.Config   `yaml:"log"`
	Cache      CacheConfig      `yaml:"cache"`
	Generation GenerationConfig `yaml:"generation"`
	Router     RouterConfig     `yaml:"router"`
	Budget     BudgetConfig     `yaml:"budget"`
}

// CacheConfig controls the content cache.
type CacheConfig struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// GenerationConfig configures the external generation endpoint.
type GenerationConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// RouterConfig maps model aliases to model ids.
type RouterConfig struct {
	Aliases []AliasConfig `yaml:"aliases"`
}

// AliasConfig maps one alias to a model id.
type AliasConfig struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
}

// BudgetConfig controls token budget enforcement.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:  "promptlab.db",
		Backend: BackendSQLite,
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			DefaultTTL:    time.Hour,
			PurgeInterval: 10 * time.Minute,
		},
		Generation: GenerationConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  "gemini-2.0-flash",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid config: unknown backend %q", c.Backend)
	}
	if c.Backend == BackendSQLite && c.DBPath == "" {
		return fmt.Errorf("invalid config: db_path is required for the sqlite backend")
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("invalid config: cache.default_ttl must be positive")
	}
	if c.Cache.PurgeInterval < 0 {
		return fmt.Errorf("invalid config: cache.purge_interval must not be negative")
	}
	for _, a := range c.Router.Aliases {
		if a.Name == "" || a.Model == "" {
			return fmt.Errorf("invalid config: router alias needs name and model")
		}
	}
	for _, p := range c.Budget.Policies {
		if p.Model == "" || p.MaxTokens <= 0 {
			return fmt.Errorf("invalid config: budget policy needs model and positive max_tokens")
		}
		if p.Period != models.BudgetDaily && p.Period != models.BudgetMonthly {
			return fmt.Errorf("invalid config: unknown budget period %q", p.Period)
		}
	}
	return nil
}
