package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the gateway daemon's TOML configuration.
type FileConfig struct {
	Server    Server    `toml:"server"`
	Hosts     Hosts     `toml:"hosts"`
	RateLimit RateLimit `toml:"rate_limit"`
	Identity  Identity  `toml:"identity"`
	Locales   Locales   `toml:"locales"`
	Metrics   Metrics   `toml:"metrics"`
	Redis     Redis     `toml:"redis"`
}

// Server contains listen and upstream configuration.
type Server struct {
	Listen        string `toml:"listen"`
	UpstreamURL   string `toml:"upstream_url"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// Hosts contains canonical-host redirection configuration.
type Hosts struct {
	Canonical string   `toml:"canonical"`
	Legacy    []string `toml:"legacy"`
	Dev       []string `toml:"dev"`
}

// RateLimit contains the request cap configuration.
type RateLimit struct {
	GlobalMax       int      `toml:"global_max"`
	GlobalWindowSec int      `toml:"global_window_seconds"`
	SensitiveMax    int      `toml:"sensitive_max"`
	SensitiveWinSec int      `toml:"sensitive_window_seconds"`
	Blacklist       []string `toml:"blacklist"`
}

// Identity contains the identity service endpoint.
type Identity struct {
	BaseURL string `toml:"base_url"`
}

// Locales contains locale negotiation configuration.
type Locales struct {
	Supported []string `toml:"supported"`
	Default   string   `toml:"default"`
}

// Metrics contains Prometheus exposition configuration.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Redis enables the shared counter store for multi-process deployments.
type Redis struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	DB      int    `toml:"db"`
}

// LoadConfig reads the TOML file, applying defaults for absent values.
// A missing file yields pure defaults; env vars GATEWAY_LISTEN,
// GATEWAY_UPSTREAM_URL and GATEWAY_IDENTITY_URL override the file.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{
		Server:    Server{Listen: ":8080", SecureCookies: true},
		RateLimit: RateLimit{GlobalMax: 100, GlobalWindowSec: 60, SensitiveMax: 10, SensitiveWinSec: 60},
		Metrics:   Metrics{Path: "/metrics"},
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if v := os.Getenv("GATEWAY_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("GATEWAY_UPSTREAM_URL"); v != "" {
		cfg.Server.UpstreamURL = v
	}
	if v := os.Getenv("GATEWAY_IDENTITY_URL"); v != "" {
		cfg.Identity.BaseURL = v
	}

	if cfg.Identity.BaseURL == "" {
		return nil, errors.New("identity.base_url is required")
	}
	return cfg, nil
}

func (c *FileConfig) globalWindow() time.Duration {
	return time.Duration(c.RateLimit.GlobalWindowSec) * time.Second
}

func (c *FileConfig) sensitiveWindow() time.Duration {
	return time.Duration(c.RateLimit.SensitiveWinSec) * time.Second
}
