package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProviderConfig identifies a usable AI backend and its credential.
//
// Rows are created by administrators. When no row is active, the orchestrator
// synthesizes an unpersisted config from environment credentials instead;
// those never appear in this table and usage logged against them carries a
// NULL provider_config_id.
type ProviderConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider string `gorm:"type:text;not null;index"` // Provider kind: gemini, openai or claude.
	Model    string `gorm:"type:text;not null"`       // Model identifier for this config.

	APIKeyEncrypted string `gorm:"type:text;not null"` // AES-GCM encrypted provider API key.

	Active    bool `gorm:"not null;default:true"`  // Whether the config may serve requests.
	IsDefault bool `gorm:"not null;default:false"` // Tenant-wide default; at most one per provider+model.

	DefaultForTasks datatypes.JSON `gorm:"type:jsonb"` // Task types this config is preferred for.

	DailyTokenLimit   *int64 // Optional per-config daily token ceiling.
	MonthlyTokenLimit *int64 // Optional per-config monthly token ceiling.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
