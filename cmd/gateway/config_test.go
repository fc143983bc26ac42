package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
[identity]
base_url = "https://id.example.com"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Server.Listen)
	}
	if cfg.RateLimit.GlobalMax != 100 || cfg.globalWindow() != time.Minute {
		t.Errorf("global limit = %d/%v", cfg.RateLimit.GlobalMax, cfg.globalWindow())
	}
	if !cfg.Server.SecureCookies {
		t.Error("SecureCookies default = false, want true")
	}
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeConfig(t, `
[server]
listen = ":9000"
upstream_url = "http://127.0.0.1:3000"
secure_cookies = false

[hosts]
canonical = "www.example.com"
legacy = ["example.org"]

[rate_limit]
global_max = 50
global_window_seconds = 30
blacklist = ["6.6.6.6"]

[identity]
base_url = "https://id.example.com"

[redis]
enabled = true
addr = "localhost:6379"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Listen != ":9000" || cfg.Server.SecureCookies {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Hosts.Canonical != "www.example.com" || len(cfg.Hosts.Legacy) != 1 {
		t.Errorf("hosts = %+v", cfg.Hosts)
	}
	if cfg.RateLimit.GlobalMax != 50 || cfg.globalWindow() != 30*time.Second {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestLoadConfig_MissingIdentityURL(t *testing.T) {
	path := writeConfig(t, `[server]
listen = ":9000"
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() error = nil, want missing identity.base_url")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
[identity]
base_url = "https://id.example.com"
`)

	t.Setenv("GATEWAY_LISTEN", ":7070")
	t.Setenv("GATEWAY_IDENTITY_URL", "https://id2.example.com")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Listen != ":7070" {
		t.Errorf("Listen = %q, want :7070", cfg.Server.Listen)
	}
	if cfg.Identity.BaseURL != "https://id2.example.com" {
		t.Errorf("BaseURL = %q", cfg.Identity.BaseURL)
	}
}
