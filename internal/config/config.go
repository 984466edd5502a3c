// Package config defines client, CLI and stub configuration and its loading.
//
// Conventions:
// - New(ctx) builds a Config with defaults; Load(ctx) layers file and env on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment names understood by the base URL resolver.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultCacheSize      = 256
	defaultMaxUploadBytes = 10 << 20
	defaultDevBaseURL     = "http://127.0.0.1:8002"
)

// Resolver yields the API base URL for the active environment.
type Resolver interface {
	BaseURL() string
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Env picks an entry of BaseURLs when BaseURLOverride is empty.
	Env string `koanf:"env"`

	// BaseURLOverride, when set, wins over BaseURLs.
	BaseURLOverride string `koanf:"base_url"`

	// BaseURLs maps environment names to API base URLs.
	BaseURLs map[string]string `koanf:"base_urls"`

	// Timeout bounds every HTTP call, uploads included.
	Timeout time.Duration `koanf:"timeout"`

	// TokenFile is the credential store written by "voiceprint login".
	TokenFile string `koanf:"token_file"`

	// CacheSize bounds the transport's GET response cache.
	CacheSize int `koanf:"cache_size"`

	// MaxUploadBytes rejects larger audio files before uploading.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// StubAddr is the listen address of the local stub backend.
	StubAddr string `koanf:"stub_addr"`

	// StubTokens are the bearer tokens the stub accepts.
	StubTokens []string `koanf:"stub_tokens"`

	// MetricsEnabled turns the Prometheus collectors on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Env:       EnvDevelopment,
		BaseURLs: map[string]string{
			EnvDevelopment: defaultDevBaseURL,
		},
		Timeout:        defaultTimeout,
		TokenFile:      defaultTokenFile(),
		CacheSize:      defaultCacheSize,
		MaxUploadBytes: defaultMaxUploadBytes,
		StubAddr:       ":8002",
		StubTokens:     []string{"dev-token"},

		MetricsEnabled:   true,
		MetricsNamespace: "voiceprint",
	}
}

// BaseURL implements Resolver. The result has no trailing slash.
func (c *Config) BaseURL() string {
	url := c.BaseURLOverride
	if url == "" {
		url = c.BaseURLs[strings.ToLower(c.Env)]
	}
	if url == "" {
		url = c.BaseURLs[EnvDevelopment]
	}
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".voiceprint-credentials.json"
	}
	return filepath.Join(dir, "voiceprint", "credentials.json")
}
