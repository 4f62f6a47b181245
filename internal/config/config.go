// Package config loads shopinsight settings from a YAML file and the
// environment. Values from the environment win over the file, and the file
// wins over the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel        = "gpt-4o"
	DefaultSystemPrompt = "You are a helpful business assistant."
	DefaultSourceURL    = "https://fakestoreapi.com/products"
)

// DefaultModels are the models offered for selection.
var DefaultModels = []string{"gpt-4o", "gpt-4", "gpt-3.5-turbo"}

// Config holds all shopinsight configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	LLM      LLMConfig      `yaml:"llm"`
	Server   ServerConfig   `yaml:"server"`
	Sessions SessionsConfig `yaml:"sessions"`
	History  HistoryConfig  `yaml:"history"`
	Update   UpdateConfig   `yaml:"update"`
}

// CatalogConfig describes where the default product data comes from.
type CatalogConfig struct {
	SourceURL    string `yaml:"source_url"`
	SnapshotPath string `yaml:"snapshot_path"`
}

type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Models       []string      `yaml:"models"`
	SystemPrompt string        `yaml:"system_prompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// SessionsConfig selects the server's session store. Store is "memory" or "redis".
type SessionsConfig struct {
	Store         string        `yaml:"store"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type UpdateConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Repository string `yaml:"repository"`
}

// DefaultConfig returns a Config with default values. Paths left empty are
// resolved against the data directory by the caller.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Catalog: CatalogConfig{
			SourceURL: DefaultSourceURL,
		},
		LLM: LLMConfig{
			Model:        DefaultModel,
			Models:       append([]string(nil), DefaultModels...),
			SystemPrompt: DefaultSystemPrompt,
			Timeout:      60 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 20 << 20,
		},
		Sessions: SessionsConfig{
			Store:     "memory",
			TTL:       24 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Update: UpdateConfig{
			Enabled:    true,
			Repository: "shopinsight/shopinsight",
		},
	}
}

// Load reads path (a missing file yields the defaults), then applies
// environment overrides. envFiles are loaded into the environment first;
// missing ones are ignored and already-set variables are never replaced.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("OPENAI_API_KEY", &c.LLM.APIKey)
	set("OPENAI_BASE_URL", &c.LLM.BaseURL)
	set("SHOPINSIGHT_MODEL", &c.LLM.Model)
	set("SHOPINSIGHT_LOG_LEVEL", &c.LogLevel)
	set("SHOPINSIGHT_SERVER_ADDR", &c.Server.Addr)
	set("SHOPINSIGHT_SESSION_STORE", &c.Sessions.Store)
	set("SHOPINSIGHT_REDIS_PASSWORD", &c.Sessions.RedisPassword)

	if v, ok := lookup("SHOPINSIGHT_REDIS_ADDR"); ok && v != "" {
		c.Sessions.RedisAddr = v
		c.Sessions.Store = "redis"
	}
	if v, ok := lookup("SHOPINSIGHT_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SHOPINSIGHT_REDIS_DB %q: %w", v, err)
		}
		c.Sessions.RedisDB = db
	}
	return nil
}

// Validate checks the settings that would otherwise fail much later.
func (c *Config) Validate() error {
	c.Sessions.Store = strings.ToLower(strings.TrimSpace(c.Sessions.Store))
	switch c.Sessions.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session store %q, expected memory or redis", c.Sessions.Store)
	}
	if len(c.LLM.Models) == 0 {
		c.LLM.Models = append([]string(nil), DefaultModels...)
	}
	if c.LLM.Model == "" {
		c.LLM.Model = c.LLM.Models[0]
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	return nil
}

// HasModel reports whether name is one of the configured models.
func (c *Config) HasModel(name string) bool {
	return slices.Contains(c.LLM.Models, name)
}
