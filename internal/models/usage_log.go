package models

import "time"

// Usage log statuses.
const (
	// UsageStatusSuccess marks a generation served by the primary config.
	UsageStatusSuccess = "success"
	// UsageStatusSuccessFallback marks a generation served by the fallback model.
	UsageStatusSuccessFallback = "success_fallback"
	// UsageStatusError marks a failed generation attempt.
	UsageStatusError = "error"
)

// UsageLog records metering data for a single generation attempt.
//
// Rows are immutable once written and are written even on failure. Quota
// windows are computed by summing these rows, never from a stored counter.
type UsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Requesting user ID.

	ProviderConfigID *uint64         `gorm:"index"`                       // Config served; NULL for ephemeral configs.
	ProviderConfig   *ProviderConfig `gorm:"foreignKey:ProviderConfigID"` // Associated config record.

	Provider string `gorm:"type:text;not null;index"` // Provider kind.
	Model    string `gorm:"type:text;not null"`       // Model that served (or failed) the request.
	TaskType string `gorm:"type:text;not null;index"` // Generation task type.

	InputTokens  int64 `gorm:"not null;default:0"` // Approximate prompt token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Approximate response token count (length/4).
	TotalTokens  int64 `gorm:"not null;default:0"` // Input plus output tokens.

	CostCents int64 `gorm:"not null;default:0"` // Estimated cost in integer cents.

	Status       string `gorm:"type:text;not null;index"` // success, success_fallback or error.
	ErrorMessage string `gorm:"type:text"`                // Final error message for failed attempts.

	LatencyMS int64 `gorm:"not null;default:0"` // Wall-clock latency in milliseconds.

	RequestedAt time.Time `gorm:"not null;index"`          // Request timestamp.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
