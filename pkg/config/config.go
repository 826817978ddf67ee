// Package config loads service configuration with the usual priority:
// environment variables override the config file, which overrides the
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the buffer service.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects and configures the persistence adapter.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the sqlite database file; empty means in-memory.
	Path string `yaml:"path"`
}

// OpenAIConfig configures the rewrite engine and embedder.
type OpenAIConfig struct {
	// APIKey is usually supplied via TEXTLOOM_OPENAI_API_KEY instead
	// of the file.
	APIKey     string `yaml:"api_key"`
	ChatModel  string `yaml:"chat_model"`
	EmbedModel string `yaml:"embed_model"`
}

// RetryConfig bounds retries against the rewrite and embedding APIs.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	PerAttemptTimeout time.Duration `yaml:"per_attempt_timeout"`
	Backoff           time.Duration `yaml:"backoff"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver: "memory",
		},
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			PerAttemptTimeout: 60 * time.Second,
			Backoff:           500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load merges defaults, an optional YAML file, and environment
// overrides. A missing file is not an error; an unreadable or invalid
// one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("TEXTLOOM_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TEXTLOOM_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TEXTLOOM_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("TEXTLOOM_CHAT_MODEL"); v != "" {
		cfg.OpenAI.ChatModel = v
	}
	if v := os.Getenv("TEXTLOOM_EMBED_MODEL"); v != "" {
		cfg.OpenAI.EmbedModel = v
	}
	if v := os.Getenv("TEXTLOOM_RETRY_MAX_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = i
		}
	}
	if v := os.Getenv("TEXTLOOM_RETRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.PerAttemptTimeout = d
		}
	}
	if v := os.Getenv("TEXTLOOM_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Backoff = d
		}
	}
	if v := os.Getenv("TEXTLOOM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TEXTLOOM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1")
	}
	if c.Retry.PerAttemptTimeout < 0 || c.Retry.Backoff < 0 {
		return fmt.Errorf("retry durations must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
