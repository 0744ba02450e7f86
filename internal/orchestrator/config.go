package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/careerpilot-ke/careerpilot/internal/models"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/settings"
	"gorm.io/gorm"
)

// ErrNoProviderConfigured is the fatal configuration error raised when no
// usable credential exists anywhere: no active database config and no
// environment fallback.
var ErrNoProviderConfigured = errors.New("orchestrator: no AI provider configured")

// resolvedConfig is the runtime view of a provider configuration.
//
// A persisted config carries its database row; an ephemeral config, synthesized
// from environment credentials or for a fallback retry, has a nil record. The
// distinction drives two branches: ephemeral credentials are already plaintext
// (no decryption), and usage logged against them carries no config foreign key.
type resolvedConfig struct {
	record     *models.ProviderConfig // nil for ephemeral configs
	kind       providers.Kind
	credential string // plaintext API key
	model      string // empty means "let the router decide"
}

// persisted reports whether the config is backed by a database row.
func (c *resolvedConfig) persisted() bool { return c.record != nil }

// configID returns the database id for usage logging, nil for ephemeral.
func (c *resolvedConfig) configID() *uint64 {
	if c.record == nil {
		return nil
	}
	id := c.record.ID
	return &id
}

// resolveConfig picks the active provider configuration: an explicit override
// kind first, then the first active database config, then an ephemeral config
// from environment credentials.
func (s *Service) resolveConfig(ctx context.Context, override providers.Kind) (*resolvedConfig, error) {
	q := s.db.WithContext(ctx).Where("active = ?", true)
	if override != "" {
		q = q.Where("provider = ?", string(override))
	}

	var row models.ProviderConfig
	errFind := q.Order("is_default DESC, id ASC").First(&row).Error
	if errFind == nil {
		kind, errKind := providers.ParseKind(row.Provider)
		if errKind != nil {
			return nil, errKind
		}
		credential, errDecrypt := s.cipher.Decrypt(row.APIKeyEncrypted)
		if errDecrypt != nil {
			return nil, errDecrypt
		}
		return &resolvedConfig{record: &row, kind: kind, credential: credential, model: row.Model}, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	return s.ephemeralFromEnv(override)
}

// ephemeralFromEnv synthesizes an unpersisted config from environment
// credentials. The credential stays plaintext in memory and is never stored.
func (s *Service) ephemeralFromEnv(override providers.Kind) (*resolvedConfig, error) {
	kinds := providers.AllKinds()
	if override != "" {
		kinds = []providers.Kind{override}
	}
	for _, kind := range kinds {
		if credential := strings.TrimSpace(s.envCredentials[kind]); credential != "" {
			return &resolvedConfig{kind: kind, credential: credential}, nil
		}
	}
	if override != "" {
		return nil, fmt.Errorf("%w (provider=%s)", ErrNoProviderConfigured, override)
	}
	return nil, ErrNoProviderConfigured
}

// fallbackFor builds the one-shot fallback config for a failed persisted
// config: same provider kind and credential, forced onto a known-good model.
// Administrators may override the model per provider through DB settings.
func fallbackFor(failed *resolvedConfig) *resolvedConfig {
	model := providers.FallbackModel(failed.kind)
	key := settings.FallbackModelKeyPrefix + strings.ToUpper(string(failed.kind))
	if override, ok := settings.DBConfigString(key); ok {
		model = override
	}
	return &resolvedConfig{
		kind:       failed.kind,
		credential: failed.credential,
		model:      model,
	}
}
