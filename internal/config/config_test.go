package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("host default = %q", cfg.Server.Host)
	}
	if cfg.Generator.Backend != "openrouter" {
		t.Errorf("generator backend default = %q", cfg.Generator.Backend)
	}
	if cfg.Dispatch.MaxAttempts != 3 {
		t.Errorf("max attempts default = %d", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Dispatch.PollInterval() != 30*time.Second {
		t.Errorf("poll interval default = %s", cfg.Dispatch.PollInterval())
	}
	if cfg.Generator.Timeout() != 60*time.Second {
		t.Errorf("generator timeout default = %s", cfg.Generator.Timeout())
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  url: postgres://file/db\n")

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("DISPATCH_WORKERS", "8")

	cfg, err := LoadFromEnv(path)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("database url = %q, want env override", cfg.Database.URL)
	}
	if cfg.Generator.APIKey != "sk-test" {
		t.Errorf("api key not overridden")
	}
	if cfg.Dispatch.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Dispatch.Workers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestServerAddr(t *testing.T) {
	c := ServerConfig{Host: "0.0.0.0", Port: 8081}
	if got := c.Addr(); got != "0.0.0.0:8081" {
		t.Errorf("Addr = %q", got)
	}
}
