// Package config handles configuration loading for the state service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Inference InferenceConfig `yaml:"inference"`
	Upload    UploadConfig    `yaml:"upload"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxBodyMB      int      `yaml:"max_body_mb"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// ViewerConfig selects deployments for generated links.
type ViewerConfig struct {
	DefaultSite string       `yaml:"default_site"`
	Sites       []SiteConfig `yaml:"sites"`
}

// SiteConfig adds a deployment to the built-in table.
type SiteConfig struct {
	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	RewriteGraphene bool   `yaml:"rewrite_graphene"`
}

// InferenceConfig controls source metadata lookups.
type InferenceConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	CacheSize      int  `yaml:"cache_size"`
}

// UploadConfig points at a state server used to shorten long links.
type UploadConfig struct {
	Endpoint string `yaml:"endpoint"`
	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{Inference: InferenceConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			CORSOrigins:    []string{"*"},
			MaxBodyMB:      64,
			TimeoutSeconds: 60,
		},
		Viewer: ViewerConfig{
			DefaultSite: "spelunker",
		},
		Inference: InferenceConfig{
			Enabled:        true,
			TimeoutSeconds: 5,
			CacheSize:      100,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.MaxBodyMB == 0 {
		cfg.Server.MaxBodyMB = defaults.Server.MaxBodyMB
	}
	if cfg.Server.TimeoutSeconds == 0 {
		cfg.Server.TimeoutSeconds = defaults.Server.TimeoutSeconds
	}
	if cfg.Viewer.DefaultSite == "" {
		cfg.Viewer.DefaultSite = defaults.Viewer.DefaultSite
	}
	if cfg.Inference.TimeoutSeconds == 0 {
		cfg.Inference.TimeoutSeconds = defaults.Inference.TimeoutSeconds
	}
	if cfg.Inference.CacheSize == 0 {
		cfg.Inference.CacheSize = defaults.Inference.CacheSize
	}
}

// Timeout is the per-request deadline.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MaxBodyBytes is the request body limit.
func (c ServerConfig) MaxBodyBytes() int64 {
	return int64(c.MaxBodyMB) << 20
}

// Timeout is the per-lookup deadline.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Token reads the upload token from the environment.
func (c UploadConfig) Token() string {
	if c.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}
