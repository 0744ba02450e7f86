package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, errLoad := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.TokenExpiry() != 12*time.Hour {
		t.Fatalf("token expiry = %v, want 12h", cfg.TokenExpiry())
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  addr: ":9090"
database:
  dsn: "file:test.db"
auth:
  jwt-secret: "from-file"
  token-expiry-minutes: 60
`
	if errWrite := os.WriteFile(path, []byte(contents), 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	t.Setenv("CAREERPILOT_JWT_SECRET", "from-env")
	t.Setenv("GEMINI_API_KEY", "gm-key")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("jwt secret = %q, want env override", cfg.Auth.JWTSecret)
	}
	if cfg.Providers.GeminiAPIKey != "gm-key" {
		t.Fatalf("gemini key = %q", cfg.Providers.GeminiAPIKey)
	}
	if cfg.TokenExpiry() != time.Hour {
		t.Fatalf("token expiry = %v, want 1h", cfg.TokenExpiry())
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if errValidate := cfg.Validate(); errValidate == nil {
		t.Fatalf("expected empty config to fail validation")
	}

	cfg.Database.DSN = "file:test.db"
	cfg.Auth.JWTSecret = "secret"
	cfg.Security.CredentialSecret = "secret"
	if errValidate := cfg.Validate(); errValidate != nil {
		t.Fatalf("validate: %v", errValidate)
	}
}
