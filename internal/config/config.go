package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ctxembed/internal/trace"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CTXEMBED"

type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Cache     CacheConfig     `toml:"cache"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Trace     trace.Config    `toml:"trace"`
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens"` // 0 = registry default for the model
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	Size    int    `toml:"size"`
}

type GatewayConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

// env holds overrides read from CTXEMBED_* variables, e.g. CTXEMBED_API_KEY.
type env struct {
	Model        string `split_words:"true"`
	APIKey       string `split_words:"true"`
	BaseURL      string `split_words:"true"`
	MaxTokens    int    `split_words:"true"`
	CachePath    string `split_words:"true"`
	GatewayAddr  string `split_words:"true"`
	GatewayToken string `split_words:"true"`
}

func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    defaultCachePath(),
			Size:    10000,
		},
		Gateway: GatewayConfig{
			Addr: ":8484",
		},
	}
}

// Load reads the config from the default location.
func Load() (*Config, error) {
	return LoadFile(configPath())
}

// LoadFile reads path if it exists, then applies environment overrides.
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var e env
	if err := envconfig.Process(envPrefix, &e); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if e.APIKey != "" {
		c.Embedding.APIKey = e.APIKey
	}
	if e.Model != "" {
		c.Embedding.Model = e.Model
	}
	if e.BaseURL != "" {
		c.Embedding.BaseURL = e.BaseURL
	}
	if e.MaxTokens != 0 {
		c.Embedding.MaxTokens = e.MaxTokens
	}
	if e.CachePath != "" {
		c.Cache.Path = e.CachePath
	}
	if e.GatewayAddr != "" {
		c.Gateway.Addr = e.GatewayAddr
	}
	if e.GatewayToken != "" {
		c.Gateway.Token = e.GatewayToken
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Embedding.Provider != "openai" {
		errs = append(errs, fmt.Errorf("unsupported embedding provider %q", c.Embedding.Provider))
	}
	if c.Embedding.MaxTokens < 0 {
		errs = append(errs, errors.New("embedding.max_tokens must not be negative"))
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when the cache is enabled"))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, errors.New("cache.size must not be negative"))
	}
	return errors.Join(errs...)
}

func configPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "ctxembed", "config.toml")
}

func defaultCachePath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "ctxembed", "cache.db")
}
