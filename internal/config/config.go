// Package config loads service configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	Providers ProvidersConfig `yaml:"providers"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds the storage DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt-secret"`
	TokenExpiryMinutes int    `yaml:"token-expiry-minutes"`
}

// SecurityConfig holds the credential encryption secret.
type SecurityConfig struct {
	CredentialSecret string `yaml:"credential-secret"`
}

// ProvidersConfig holds environment-sourced provider API keys used when no
// database provider config is active.
type ProvidersConfig struct {
	GeminiAPIKey string `yaml:"gemini-api-key"`
	OpenAIAPIKey string `yaml:"openai-api-key"`
	ClaudeAPIKey string `yaml:"claude-api-key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File  string `yaml:"file"`  // empty logs to stderr only
	Level string `yaml:"level"` // logrus level name
}

// Load reads the config file and applies environment overrides. A missing
// file is not an error; environment variables alone can configure the service.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		Auth:   AuthConfig{TokenExpiryMinutes: 720},
		Log:    LogConfig{Level: "info"},
	}

	if strings.TrimSpace(path) != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil && !os.IsNotExist(errRead) {
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
		if errRead == nil {
			if errParse := yaml.Unmarshal(data, cfg); errParse != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
			}
		}
	}

	applyEnv(&cfg.Server.Addr, "CAREERPILOT_ADDR")
	applyEnv(&cfg.Database.DSN, "CAREERPILOT_DSN")
	applyEnv(&cfg.Auth.JWTSecret, "CAREERPILOT_JWT_SECRET")
	applyEnv(&cfg.Security.CredentialSecret, "CAREERPILOT_CREDENTIAL_SECRET")
	applyEnv(&cfg.Providers.GeminiAPIKey, "GEMINI_API_KEY")
	applyEnv(&cfg.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	applyEnv(&cfg.Providers.ClaudeAPIKey, "ANTHROPIC_API_KEY")
	applyEnv(&cfg.Log.File, "CAREERPILOT_LOG_FILE")
	applyEnv(&cfg.Log.Level, "CAREERPILOT_LOG_LEVEL")

	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database dsn is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: jwt secret is required")
	}
	if strings.TrimSpace(c.Security.CredentialSecret) == "" {
		return fmt.Errorf("config: credential secret is required")
	}
	return nil
}

// TokenExpiry returns the session token lifetime.
func (c *Config) TokenExpiry() time.Duration {
	minutes := c.Auth.TokenExpiryMinutes
	if minutes <= 0 {
		minutes = 720
	}
	return time.Duration(minutes) * time.Minute
}

func applyEnv(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			*target = trimmed
		}
	}
}
